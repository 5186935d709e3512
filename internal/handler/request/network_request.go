package request

type SelectNetworkRequest struct {
	Name string `json:"name" binding:"required"`
	URL  string `json:"url" binding:"omitempty,url"`
}
