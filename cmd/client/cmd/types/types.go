package types

type ctxKey string

// ClientAppKey - ключ контекста команды, под которым лежит *client.App
const ClientAppKey ctxKey = "app"
