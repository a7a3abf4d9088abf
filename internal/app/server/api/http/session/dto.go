package session

type anonymousOutput struct {
	Body AnonymousResponse
}

type AnonymousResponse struct {
	Token  string `json:"token" doc:"Bearer токен сессии"`
	UID    string `json:"uid" doc:"Анонимный идентификатор клиента"`
	Status string `json:"status"`
}
