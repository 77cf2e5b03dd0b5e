package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"mpesa-commerce-bot/internal/domain"
	"mpesa-commerce-bot/internal/domain/model"
)

type stkCallbackEnvelope struct {
	Body struct {
		StkCallback *struct {
			MerchantRequestID string      `json:"MerchantRequestID"`
			CheckoutRequestID string      `json:"CheckoutRequestID"`
			ResultCode        json.Number `json:"ResultCode"`
			ResultDesc        string      `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseSTKCallback normalizes a Daraja STK callback body into a payment outcome.
// Errors wrap domain.ErrMalformedCallback.
func ParseSTKCallback(body []byte) (model.PaymentOutcome, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var env stkCallbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return model.PaymentOutcome{}, fmt.Errorf("%w: %v", domain.ErrMalformedCallback, err)
	}
	cb := env.Body.StkCallback
	if cb == nil {
		return model.PaymentOutcome{}, fmt.Errorf("%w: missing Body.stkCallback", domain.ErrMalformedCallback)
	}
	if cb.CheckoutRequestID == "" {
		return model.PaymentOutcome{}, fmt.Errorf("%w: missing CheckoutRequestID", domain.ErrMalformedCallback)
	}
	code, err := cb.ResultCode.Int64()
	if err != nil {
		return model.PaymentOutcome{}, fmt.Errorf("%w: ResultCode %q", domain.ErrMalformedCallback, cb.ResultCode)
	}

	out := model.PaymentOutcome{
		TransactionID: cb.CheckoutRequestID,
		ResultCode:    int(code),
		ResultDesc:    cb.ResultDesc,
	}
	if cb.CallbackMetadata == nil {
		return out, nil
	}
	for _, item := range cb.CallbackMetadata.Item {
		v := metadataString(item.Value)
		switch item.Name {
		case "Amount":
			if amount, err := decimal.NewFromString(v); err == nil {
				out.Amount = &amount
			}
		case "MpesaReceiptNumber":
			out.ReceiptID = v
		case "PhoneNumber":
			out.PayerPhone = v
		}
	}
	return out, nil
}

func metadataString(v interface{}) string {
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case string:
		return strings.TrimSpace(t)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
