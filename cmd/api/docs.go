//go:generate swag init -g docs.go -o ../../docs --parseDependency --parseInternal --dir .,../../internal/httpapi

package main

// @title userdesk API
// @version 1.0
// @description Operator API over a locally cached copy of the remote users directory.
// @BasePath /v1
