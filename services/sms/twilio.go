package smssvc

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/maktab-uz/maktab/core"
)

var twilioHost = "https://api.twilio.com"

type twilioService struct {
	accountSID string
	authToken  string
	from       string
	client     *rest.Client
}

var _ core.SMSService = (*twilioService)(nil)

// NewTwilioService sends messages through the Twilio Messages REST API.
func NewTwilioService(conf core.SMSConfig) core.SMSService {
	return &twilioService{
		accountSID: conf.TwilioAccountSID,
		authToken:  conf.TwilioAuthToken,
		from:       conf.FromNumber,
		client:     &rest.Client{HTTPClient: &http.Client{Timeout: 10 * time.Second}},
	}
}

func (svc twilioService) request(msg core.SMSMessage) rest.Request {
	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", svc.from)
	form.Set("Body", msg.Body)

	creds := base64.StdEncoding.EncodeToString([]byte(svc.accountSID + ":" + svc.authToken))
	return rest.Request{
		Method:  rest.Post,
		BaseURL: fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", twilioHost, svc.accountSID),
		Headers: map[string]string{
			"Accept":        "application/json",
			"Authorization": "Basic " + creds,
			"Content-Type":  "application/x-www-form-urlencoded",
		},
		Body: []byte(form.Encode()),
	}
}

func (svc twilioService) Send(ctx context.Context, msg core.SMSMessage) error {
	req, err := rest.BuildRequestObject(svc.request(msg))
	if err != nil {
		return errors.Wrap(err, "building SMS request")
	}
	httpRes, err := svc.client.HTTPClient.Do(req.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "sending SMS")
	}
	res, err := rest.BuildResponse(httpRes)
	if err != nil {
		return errors.Wrap(err, "reading SMS response")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sending SMS - status: %d - Body: %s", res.StatusCode, res.Body)
	}
	return nil
}
