package handlers

import (
	"strings"

	"github.com/basit/shifter/accounts"
	"github.com/basit/shifter/auth"
	"github.com/basit/shifter/files"
	"github.com/basit/shifter/jobs"
	"github.com/basit/shifter/settings"
	"github.com/basit/shifter/storage"
)

// Handler carries the services every endpoint works against.
type Handler struct {
	files    *files.Store
	blobs    storage.Blob
	settings *settings.Resolver
	accounts *accounts.Service
	cleanup  *jobs.Cleanup
	tokens   *auth.TokenManager
	siteURL  string
}

type Deps struct {
	Files    *files.Store
	Blobs    storage.Blob
	Settings *settings.Resolver
	Accounts *accounts.Service
	Cleanup  *jobs.Cleanup
	Tokens   *auth.TokenManager
	SiteURL  string
}

func New(d Deps) *Handler {
	return &Handler{
		files:    d.Files,
		blobs:    d.Blobs,
		settings: d.Settings,
		accounts: d.Accounts,
		cleanup:  d.Cleanup,
		tokens:   d.Tokens,
		siteURL:  strings.TrimRight(d.SiteURL, "/"),
	}
}

func (h *Handler) shareURL(token string) string {
	return h.siteURL + "/f/" + token
}

func (h *Handler) downloadURL(token string) string {
	return h.siteURL + "/download/" + token
}
