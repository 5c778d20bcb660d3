package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	purchaseValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iap_purchase_validations_total",
		Help: "Synchronous purchase validations by platform and outcome.",
	}, []string{"platform", "outcome"})

	storeNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iap_notifications_total",
		Help: "Store notifications by channel and outcome.",
	}, []string{"channel", "outcome"})
)
