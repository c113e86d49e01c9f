package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mamadbah2/baleledger/internal/config"
	"github.com/mamadbah2/baleledger/pkg/clients/whatsapp"
)

type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) GenerateDailyReport(ctx context.Context, day time.Time) (string, error) {
	args := m.Called(ctx, day)
	return args.String(0), args.Error(1)
}

type MockClient struct {
	mock.Mock
}

func (m *MockClient) SendTextMessage(ctx context.Context, req whatsapp.SendTextMessageRequest) (*whatsapp.SendTextMessageResponse, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*whatsapp.SendTextMessageResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func testConfig() config.Config {
	return config.Config{
		WhatsApp:  config.WhatsAppConfig{ReportTo: "224600000000"},
		Reporting: config.ReportingConfig{CronSchedule: "0 20 * * *", Timezone: "UTC"},
	}
}

func newTestScheduler(t *testing.T, cfg config.Config, reporter Reporter, client whatsapp.Client) *Scheduler {
	t.Helper()
	s, err := NewScheduler(cfg, reporter, client, zaptest.NewLogger(t))
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, time.February, 3, 20, 0, 0, 0, time.UTC) }
	return s
}

func TestSendDailyReport(t *testing.T) {
	reporter := new(MockReporter)
	client := new(MockClient)

	day := time.Date(2024, time.February, 3, 20, 0, 0, 0, time.UTC)
	reporter.On("GenerateDailyReport", mock.Anything, day).Return("Bale sales report 03-02-2024", nil)
	client.On("SendTextMessage", mock.Anything, whatsapp.SendTextMessageRequest{
		To:   "224600000000",
		Body: "Bale sales report 03-02-2024",
	}).Return(&whatsapp.SendTextMessageResponse{}, nil)

	newTestScheduler(t, testConfig(), reporter, client).sendDailyReport()

	reporter.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestSendDailyReportSkipsSendOnFailure(t *testing.T) {
	reporter := new(MockReporter)
	client := new(MockClient)
	reporter.On("GenerateDailyReport", mock.Anything, mock.Anything).Return("", errors.New("store unavailable"))

	newTestScheduler(t, testConfig(), reporter, client).sendDailyReport()

	client.AssertNotCalled(t, "SendTextMessage", mock.Anything, mock.Anything)
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Reporting.CronSchedule = "every day"

	s := newTestScheduler(t, cfg, new(MockReporter), new(MockClient))
	assert.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	s := newTestScheduler(t, testConfig(), new(MockReporter), new(MockClient))
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 1)
	s.Stop()
}

func TestNewSchedulerRejectsUnknownTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.Reporting.Timezone = "Mars/Olympus"

	_, err := NewScheduler(cfg, new(MockReporter), new(MockClient), nil)
	assert.Error(t, err)
}
