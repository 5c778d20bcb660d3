package models

// Raw store responses are modeled as explicit tagged variants so the
// resolver can be an exhaustive match with no network dependency.

// StoreData holds exactly one verified store response.
type StoreData struct {
	AppleReceipt       *AppleVerifyResponse
	GoogleSubscription *GoogleSubscription
	GoogleProduct      *GoogleProduct
}

// AppleVerifyResponse mirrors the verifyReceipt envelope. All timestamps are
// base-10 millisecond-epoch strings, exactly as Apple sends them.
type AppleVerifyResponse struct {
	Status             int                   `json:"status"`
	Environment        string                `json:"environment,omitempty"`
	LatestReceiptInfo  []AppleReceiptItem    `json:"latest_receipt_info,omitempty"`
	PendingRenewalInfo []ApplePendingRenewal `json:"pending_renewal_info,omitempty"`
	Receipt            *AppleReceiptBody     `json:"receipt,omitempty"`
	Raw                string                `json:"-"`
}

type AppleReceiptBody struct {
	BundleID string             `json:"bundle_id,omitempty"`
	InApp    []AppleReceiptItem `json:"in_app,omitempty"`
}

type AppleReceiptItem struct {
	ProductID             string `json:"product_id"`
	TransactionID         string `json:"transaction_id"`
	OriginalTransactionID string `json:"original_transaction_id"`
	PurchaseDateMS        string `json:"purchase_date_ms,omitempty"`
	ExpiresDateMS         string `json:"expires_date_ms,omitempty"`
	IsTrialPeriod         string `json:"is_trial_period,omitempty"`
	IsInIntroOfferPeriod  string `json:"is_in_intro_offer_period,omitempty"`
	CancellationDateMS    string `json:"cancellation_date_ms,omitempty"`
}

type ApplePendingRenewal struct {
	ProductID          string `json:"product_id,omitempty"`
	AutoRenewProductID string `json:"auto_renew_product_id,omitempty"`
	AutoRenewStatus    string `json:"auto_renew_status,omitempty"`
}

// GoogleSubscription is the normalized purchases.subscriptions resource.
// PaymentState: 0 pending, 1 received, 2 free trial, 3 deferred.
type GoogleSubscription struct {
	ProductID        string
	PurchaseToken    string
	OrderID          string
	StartTimeMillis  string
	ExpiryTimeMillis string
	PaymentState     *int64
	AutoRenewing     *bool
	CancelReason     int64
	Acknowledged     bool
	Raw              string
}

// GoogleProduct is the normalized purchases.products resource.
// PurchaseState: 0 purchased, 1 canceled, 2 pending.
type GoogleProduct struct {
	ProductID          string
	PurchaseToken      string
	OrderID            string
	PurchaseState      int64
	PurchaseTimeMillis string
	Acknowledged       bool
	Consumed           bool
	Raw                string
}

// GoogleSubscriptionV2 is the richer subscriptionsv2 lookup, keyed by token
// alone. Offer tags deliberately carry no trial meaning here: they describe
// the offer type, not the user's current payment state.
type GoogleSubscriptionV2 struct {
	SubscriptionState string
	LineItems         []GoogleSubscriptionV2Line
	Raw               string
}

type GoogleSubscriptionV2Line struct {
	ProductID  string
	ExpiryTime string // RFC 3339
}

// AppleNotificationPayload is the decoded outer payload of an App Store
// server notification (after signature verification).
type AppleNotificationPayload struct {
	NotificationType string `json:"notificationType"`
	Subtype          string `json:"subtype,omitempty"`
	NotificationUUID string `json:"notificationUUID,omitempty"`
	Data             struct {
		AppAppleID            int64  `json:"appAppleId,omitempty"`
		BundleID              string `json:"bundleId,omitempty"`
		Environment           string `json:"environment"`
		SignedTransactionInfo string `json:"signedTransactionInfo,omitempty"`
		SignedRenewalInfo     string `json:"signedRenewalInfo,omitempty"`
	} `json:"data"`
	Version    string `json:"version"`
	SignedDate int64  `json:"signedDate"`
	Raw        string `json:"-"`
}

// AppleTransaction contains decoded fields from the independently signed
// transactionInfo JWS. ExpiresDate is a millisecond epoch, 0 when absent.
type AppleTransaction struct {
	TransactionID         string `json:"transactionId"`
	OriginalTransactionID string `json:"originalTransactionId"`
	ProductID             string `json:"productId"`
	BundleID              string `json:"bundleId"`
	AppAccountToken       string `json:"appAccountToken,omitempty"`
	PurchaseDate          int64  `json:"purchaseDate,omitempty"`
	ExpiresDate           int64  `json:"expiresDate,omitempty"`
	Type                  string `json:"type,omitempty"`
	OfferType             int64  `json:"offerType,omitempty"`
	Environment           string `json:"environment"`
	Raw                   string `json:"-"`
}

// AppleRenewalInfo contains decoded fields from signedRenewalInfo.
type AppleRenewalInfo struct {
	OriginalTransactionID string `json:"originalTransactionId"`
	AutoRenewProductID    string `json:"autoRenewProductId,omitempty"`
	AutoRenewStatus       int64  `json:"autoRenewStatus"`
	Environment           string `json:"environment"`
	SignedDate            int64  `json:"signedDate"`
	Raw                   string `json:"-"`
}
