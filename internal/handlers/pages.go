package handlers

import (
	"context"
	_ "embed"
)

const htmlContentType = "text/html; charset=utf-8"

var (
	//go:embed pages/index.html
	indexPage []byte
	//go:embed pages/login.html
	loginPage []byte
	//go:embed pages/notfound.html
	notFoundPage []byte
)

// Index serves the application shell.
func Index(_ context.Context, _ *struct{}) (*PageResponse, error) {
	return &PageResponse{ContentType: htmlContentType, Body: indexPage}, nil
}

// Login serves the login page.
func Login(_ context.Context, _ *struct{}) (*PageResponse, error) {
	return &PageResponse{ContentType: htmlContentType, Body: loginPage}, nil
}
