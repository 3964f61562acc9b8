package types

import (
	"time"
)

type ScrapeOptions struct {
	MaxChars int
	Timeout  time.Duration // default 15s
}

type WebSourceRequest struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}
