// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package adapter

import (
	"net/http"

	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

// CodedHTTPError converts an upstream HTTP status into a coded error so
// the engine can classify the failure uniformly across vendors. The raw
// message is preserved for operators.
func CodedHTTPError(vendor, model string, status int, msg string) error {
	fields := []relayerr.Attr{
		relayerr.FieldVendor(vendor),
		relayerr.FieldModel(model),
		relayerr.Field("status", status),
	}

	var code relayerr.Code
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = relayerr.CodeVendorAuthInvalid
	case status == http.StatusNotFound:
		code = relayerr.CodeVendorModelNotFound
	case status == http.StatusTooManyRequests:
		code = relayerr.CodeVendorRateLimited
	case status == http.StatusPaymentRequired:
		code = relayerr.CodeVendorQuotaExceeded
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		code = relayerr.CodeVendorTimeout
	case status >= 500:
		code = relayerr.CodeVendorUpstreamFailure
	default:
		code = relayerr.CodeVendorResponseInvalid
	}

	return relayerr.New(code, vendor+": upstream returned "+http.StatusText(status)+": "+msg, fields...)
}
