package http

// VerifyWebhookSignature is exported for testing
var VerifyWebhookSignature = verifyWebhookSignature
