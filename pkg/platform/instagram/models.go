package instagram

// profileResponse is the shape of the web_profile_info endpoint
type profileResponse struct {
	Data struct {
		User profileUser `json:"user"`
	} `json:"data"`
	RequiresToLogin bool   `json:"requires_to_login"`
	Status          string `json:"status"`
}

type profileUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	ProfilePicURL string `json:"profile_pic_url_hd"`
	IsPrivate     bool   `json:"is_private"`
}

// userListResponse is the shape of the friendships list endpoints
type userListResponse struct {
	Users     []listUser `json:"users"`
	NextMaxID string     `json:"next_max_id"`
	Status    string     `json:"status"`
}

type listUser struct {
	PK            string `json:"pk_id"`
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	ProfilePicURL string `json:"profile_pic_url"`
	IsPrivate     bool   `json:"is_private"`
}
