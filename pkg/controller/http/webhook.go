package http

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/usecase"
	"github.com/secmon-lab/crmsync/pkg/utils/errutil"
	"github.com/secmon-lab/crmsync/pkg/utils/safe"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body,
// optionally prefixed with "sha256=".
const SignatureHeader = "X-Webhook-Signature"

// verifyWebhookSignature checks signature against the HMAC of body
func verifyWebhookSignature(secret, signature string, body []byte) error {
	if signature == "" {
		return goerr.New("missing signature")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := mac.Write(body); err != nil {
		return goerr.Wrap(err, "failed to compute HMAC")
	}
	expected := hex.EncodeToString(mac.Sum(nil))

	given := strings.TrimPrefix(strings.ToLower(signature), "sha256=")
	if !hmac.Equal([]byte(expected), []byte(given)) {
		return goerr.New("signature mismatch")
	}
	return nil
}

// WebhookSignatureMiddleware rejects webhook requests whose signature does
// not match the shared secret. The body is restored for the next handler.
func WebhookSignatureMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := io.ReadAll(r.Body)
			if err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
				return
			}
			safe.Close(ctx, r.Body)

			if err := verifyWebhookSignature(secret, r.Header.Get(SignatureHeader), body); err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "webhook signature verification failed"), http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

// webhookHandler stores and applies a provider event. The provider retries
// on 5xx, so only failures worth a redelivery produce one.
func webhookHandler(uc *usecase.WebhookUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
			return
		}

		if err := uc.Receive(ctx, body); err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to handle webhook"), http.StatusInternalServerError)
			return
		}

		writeJSON(w, r, http.StatusOK, messageResponse{Message: "Webhook received"})
	}
}
