package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-panel/internal/auth"
	appErrors "github.com/unclebandit/campaign-panel/internal/errors"
	"github.com/unclebandit/campaign-panel/internal/respond"
)

type AuthController struct {
	Tokens      *auth.Tokens
	Credentials auth.Credentials
	Log         zerolog.Logger
}

func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.Error(w, c.Log, appErrors.NewValidation("", err))
		return
	}

	if !c.Credentials.Check(body.Username, body.Password) {
		c.Log.Warn().Str("username", body.Username).Msg("login rejected")
		respond.Error(w, c.Log, appErrors.NewAuth("invalid credentials"))
		return
	}

	token, exp, err := c.Tokens.Issue(body.Username)
	if err != nil {
		respond.Error(w, c.Log, &appErrors.InternalError{Err: err})
		return
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"token":     token,
		"username":  body.Username,
		"expiresAt": exp.UTC().Format(time.RFC3339),
	})
}
