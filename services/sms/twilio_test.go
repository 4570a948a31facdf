package smssvc

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maktab-uz/maktab/core"
)

func Test_twilioService_Send(t *testing.T) {
	var (
		gotPath string
		gotForm url.Values
		gotUser string
		gotPwd  string
		status  = http.StatusCreated
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPwd, _ = r.BasicAuth()
		body, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(body))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"sid": "SM123"}`))
	}))
	defer srv.Close()

	orig := twilioHost
	twilioHost = srv.URL
	defer func() { twilioHost = orig }()

	svc := NewTwilioService(core.SMSConfig{TwilioAccountSID: "AC123", TwilioAuthToken: "secret", FromNumber: "+15005550006"})
	msg := core.SMSMessage{To: "+998901234567", Body: "Your Maktab verification code is 482913"}

	require.NoError(t, svc.Send(context.Background(), msg))
	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "AC123", gotUser)
	assert.Equal(t, "secret", gotPwd)
	assert.Equal(t, msg.To, gotForm.Get("To"))
	assert.Equal(t, "+15005550006", gotForm.Get("From"))
	assert.Equal(t, msg.Body, gotForm.Get("Body"))

	status = http.StatusBadRequest
	err := svc.Send(context.Background(), msg)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "status: 400")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gotPath = ""
	assert.Error(t, svc.Send(ctx, msg))
	assert.Empty(t, gotPath)
}

func TestConsoleServiceMock(t *testing.T) {
	svc := NewConsoleServiceMock()
	ctx := context.Background()

	require.NoError(t, svc.Send(ctx, core.SMSMessage{To: "+998901234567", Body: "1"}))
	require.NoError(t, svc.Send(ctx, core.SMSMessage{To: "+998907654321", Body: "2"}))
	require.NoError(t, svc.Send(ctx, core.SMSMessage{To: "+998901234567", Body: "3"}))

	assert.Len(t, svc.SentMessages(), 3)
	msg, ok := svc.Last("+998901234567")
	require.True(t, ok)
	assert.Equal(t, "3", msg.Body)
	_, ok = svc.Last("+998900000000")
	assert.False(t, ok)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}
