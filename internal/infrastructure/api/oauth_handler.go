package api

import (
	"errors"
	"net/http"
	"net/url"

	"shopify-entity-sync/internal/application"
	"shopify-entity-sync/internal/domain"

	"github.com/rs/zerolog"
)

// OAuthInitHandler initiates the OAuth flow
func OAuthInitHandler(shopifyService *application.ShopifyService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop := r.URL.Query().Get("shop")
		if shop == "" {
			writeError(w, http.StatusBadRequest, "shop parameter is required")
			return
		}

		authURL, err := shopifyService.BeginInstall(r.Context(), shop, r.URL.Query().Get("return_url"))
		if err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			logger.Error().Err(err).Str("shop", shop).Msg("Failed to begin install")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// OAuthCallbackHandler handles the OAuth callback. Without a return URL on the session
// or defaultReturnURL the installed shop is written as JSON.
func OAuthCallbackHandler(shopifyService *application.ShopifyService, defaultReturnURL string, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		shop := query.Get("shop")
		code := query.Get("code")
		state := query.Get("state")

		if shop == "" || code == "" || state == "" {
			writeError(w, http.StatusBadRequest, "missing required parameters")
			return
		}

		if !shopifyService.VerifyCallback(r.URL) {
			logger.Warn().Str("shop", shop).Msg("OAuth callback signature verification failed")
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		installed, returnURL, err := shopifyService.CompleteInstall(r.Context(), shop, code, state)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				writeError(w, http.StatusUnauthorized, "invalid session")
				return
			}
			logger.Error().Err(err).Str("shop", shop).Msg("Failed to complete installation")
			writeError(w, http.StatusInternalServerError, "failed to complete installation")
			return
		}

		if returnURL == "" {
			returnURL = defaultReturnURL
		}
		if returnURL == "" {
			writeJSON(w, http.StatusOK, installed)
			return
		}

		redirectURL, err := url.Parse(returnURL)
		if err != nil {
			logger.Warn().Err(err).Str("returnURL", returnURL).Msg("Invalid return URL")
			writeJSON(w, http.StatusOK, installed)
			return
		}
		params := redirectURL.Query()
		params.Set("shopify_oauth", "success")
		params.Set("shop", installed.Domain)
		redirectURL.RawQuery = params.Encode()

		logger.Info().
			Str("shop", shop).
			Str("returnURL", redirectURL.String()).
			Msg("Redirecting after successful OAuth")

		http.Redirect(w, r, redirectURL.String(), http.StatusFound)
	}
}
