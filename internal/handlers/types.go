package handlers

// ShortenRequest is the request body for creating a link.
type ShortenRequest struct {
	Authorization string `header:"Authorization" doc:"Bearer API key or session token"`
	Body          struct {
		URL  string `json:"url"            doc:"Target URL"        example:"https://example.com/very/long/path"`
		Slug string `json:"slug,omitempty" doc:"Custom short code" example:"launch"`
	}
}

// ShortenResponse is returned for a created link.
type ShortenResponse struct {
	Status int
	Body   struct {
		ShortCode string `json:"shortCode" example:"launch"`
		URL       string `json:"url"       example:"https://example.com/very/long/path"`
	}
}

// LinkView is a link as shown by the management API.
type LinkView struct {
	ShortCode string `json:"shortCode"         example:"launch"`
	URL       string `json:"url"               example:"https://example.com"`
	Created   string `json:"created,omitempty" example:"2026-01-02T15:04:05Z" doc:"RFC 3339 creation time"`
}

// ListRequest selects a page of links.
type ListRequest struct {
	Authorization string `header:"Authorization"`
	Limit         int    `query:"limit"  default:"1000" minimum:"1" maximum:"1000" doc:"Maximum keys scanned"`
	Cursor        string `query:"cursor" doc:"Cursor from the previous page"`
	Search        string `query:"search" doc:"Case-insensitive filter on code or URL"`
}

// ListResponse is one page of links.
type ListResponse struct {
	Body struct {
		URLs     []LinkView `json:"urls"`
		Cursor   string     `json:"cursor,omitempty"`
		Complete bool       `json:"complete"`
	}
}

// UpdateRequest replaces a link target.
type UpdateRequest struct {
	Authorization string `header:"Authorization"`
	Code          string `path:"code"`
	Body          struct {
		URL string `json:"url" example:"https://new.example.com"`
	}
}

// LinkResponse is a single link.
type LinkResponse struct {
	Body LinkView
}

// CodeRequest addresses one link.
type CodeRequest struct {
	Authorization string `header:"Authorization"`
	Code          string `path:"code"`
}

// SuccessResponse acknowledges an action.
type SuccessResponse struct {
	Body struct {
		Success bool `json:"success"`
	}
}

// RedirectResponse is a redirect or, for unknown codes, an HTML page.
type RedirectResponse struct {
	Status      int
	Location    string `header:"Location"`
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// PageResponse is a static HTML page.
type PageResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// PasswordLoginRequest exchanges the admin password for a session.
type PasswordLoginRequest struct {
	Body struct {
		Password string `json:"password" minLength:"1"`
	}
}

// PasswordLoginResponse carries the new session token.
type PasswordLoginResponse struct {
	Body struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expiresAt" doc:"RFC 3339 expiry"`
	}
}

// CallbackRequest is the provider redirect back to us.
type CallbackRequest struct {
	Code  string `query:"code"`
	State string `query:"state"`
}

// LogoutRequest carries the session to revoke.
type LogoutRequest struct {
	Authorization string `header:"Authorization"`
}
