// Package types 存放命令行各包共享的上下文键。
package types

type contextKey string

// ClientAppKey 在命令上下文中携带 *client.App。
const ClientAppKey contextKey = "client-app"
