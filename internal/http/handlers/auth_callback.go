package handlers

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/mfigueredo/tokenbridge/internal/http/errors"
	"github.com/mfigueredo/tokenbridge/internal/observability/logger"
)

// Apple's form_post response mode delivers the authorization result to a
// backend URL; the page below bounces it into the app's custom URL scheme.
const (
	appleRedirectScheme = "awscognito"
	appleRedirectHost   = "apple-callback"
)

var appleCallbackPage = template.Must(template.New("apple-callback").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta http-equiv="refresh" content="0;url={{.}}">
  <title>Redirecting...</title>
  <script>window.location.href = "{{.}}";</script>
</head>
<body>
  <p>Redirecting to app...</p>
  <p>If you are not redirected, <a href="{{.}}">click here</a>.</p>
</body>
</html>
`))

// appleUserPayload is the optional "user" form field Apple sends on the
// first authorization only.
type appleUserPayload struct {
	Email string `json:"email"`
	Name  struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"name"`
}

// AppleCallback handles POST /v1/auth/apple/callback. Apple POSTs the
// authorization response here; the response is an HTML page that immediately
// redirects the browser back into the mobile app, carrying the same
// parameters on the custom scheme.
func (c *ExchangeController) AppleCallback(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("ExchangeController.AppleCallback"))

	if err := r.ParseForm(); err != nil {
		errors.WriteError(w, errors.ErrBadRequest.WithDetail("malformed form body"))
		return
	}

	params := url.Values{}
	if authErr := r.PostFormValue("error"); authErr != "" {
		params.Set("error", authErr)
	} else {
		if v := r.PostFormValue("id_token"); v != "" {
			params.Set("id_token", v)
		}
		if v := r.PostFormValue("code"); v != "" {
			params.Set("code", v)
		}
		if raw := r.PostFormValue("user"); raw != "" {
			mergeAppleUser(params, raw, log)
		}
	}

	redirect := appleRedirectScheme + "://" + appleRedirectHost
	if enc := params.Encode(); enc != "" {
		redirect += "?" + enc
	}

	log.Info("apple callback received",
		logger.Bool("has_id_token", params.Get("id_token") != ""),
		logger.Bool("has_code", params.Get("code") != ""),
		logger.String("auth_error", params.Get("error")),
	)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := appleCallbackPage.Execute(w, template.URL(redirect)); err != nil {
		log.Error("render apple callback page", logger.Err(err))
	}
}

// mergeAppleUser folds the optional user JSON into the redirect parameters.
// The blob is best effort; a malformed one is logged and skipped.
func mergeAppleUser(params url.Values, raw string, log *zap.Logger) {
	var u appleUserPayload
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		log.Warn("unparseable apple user payload", logger.Err(err))
		return
	}
	if u.Email != "" {
		params.Set("email", u.Email)
	}
	parts := make([]string, 0, 2)
	if u.Name.FirstName != "" {
		parts = append(parts, u.Name.FirstName)
	}
	if u.Name.LastName != "" {
		parts = append(parts, u.Name.LastName)
	}
	if name := strings.Join(parts, " "); name != "" {
		params.Set("name", name)
	}
}
