// Package carrier is the client for the parcel carrier: location search for pickup
// points and shipping-order submission.
package carrier

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"orderbridge/internal/config"
	"orderbridge/internal/outbound"
)

type Client struct {
	http     *outbound.Client
	sender   config.SenderConfig
	validate *validator.Validate
}

func New(cfg config.CarrierConfig, o outbound.Options) *Client {
	h := o.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if cfg.Token != "" {
		h.Set("Authorization", "Bearer "+cfg.Token)
	}
	o.Header = h
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	return &Client{http: outbound.New("carrier", cfg.URL, o), sender: cfg.Sender, validate: v}
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}
