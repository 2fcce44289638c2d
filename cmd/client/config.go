package main

type Config struct {
	ServerAddr string `env:"CHAT_SERVER_ADDR,default=localhost:65432"`
	Nickname   string `env:"CHAT_NICKNAME,required=true"`
	// Reconnect attempts and outcomes are logged at info, so the default
	// level must not hide them.
	LogLevel string `env:"LOG_LEVEL,default=info"`
}
