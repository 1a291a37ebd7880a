package app

import (
	"github.com/mbolis/pozo-survey/backend"
	"github.com/mbolis/pozo-survey/config"
	"github.com/mbolis/pozo-survey/database"
	"github.com/mbolis/pozo-survey/form"
	"github.com/mbolis/pozo-survey/gate"
	"github.com/mbolis/pozo-survey/httpx"
	"github.com/mbolis/pozo-survey/submit"
)

type App struct {
	config.Config
	*database.Journal
	Backend  *backend.Client
	Gates    *gate.Loads
	Forms    *form.Sessions
	Pipeline *submit.Pipeline
	Sessions *httpx.SessionIssuer
}
