package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders, makeResponseJSON)
	authMiddleware := standardMiddleware.Append(app.firebaseAuth)

	mux := pat.New()

	// Purchases
	mux.Post("/purchase/validate", authMiddleware.ThenFunc(app.purchaseHandler.ValidatePurchase))
	mux.Get("/purchase/entitlement", authMiddleware.ThenFunc(app.purchaseHandler.GetEntitlement))

	// Store notifications; authenticated by signature, not by user token
	mux.Post("/iap/apple/notifications", standardMiddleware.ThenFunc(app.appleWebhook.HandleNotification))
	mux.Post("/iap/google/notifications", standardMiddleware.ThenFunc(app.googleRTDN.Notifications))

	// Account
	mux.Post("/account/delete", authMiddleware.ThenFunc(app.accountHandler.DeleteAccount))

	mux.Get("/metrics", promhttp.Handler())

	return mux
}
