package submission

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-appointments/internal/appointments"
	"github.com/wolfman30/clinic-appointments/internal/catalog"
	"github.com/wolfman30/clinic-appointments/internal/events"
	"github.com/wolfman30/clinic-appointments/internal/notify"
	"github.com/wolfman30/clinic-appointments/internal/observability/metrics"
)

func sampleRequest() appointments.AppointmentRequest {
	return appointments.AppointmentRequest{
		ID:          "req-1",
		SessionID:   "s-1",
		PatientName: "Ana Ruiz",
		Phone:       "+52 55 1234 5678",
		Email:       "ana@example.com",
		Date:        "2026-10-18",
		Time:        "10:30",
		ServiceCode: "cardiologia",
	}
}

func TestLogSubmitter(t *testing.T) {
	assert.NoError(t, NewLogSubmitter(nil).Send(context.Background(), sampleRequest()))
}

func TestQueueSubmitter_PublishesEnvelope(t *testing.T) {
	queue := NewMemoryQueue(4)
	sub := NewQueueSubmitter(queue, catalog.Directory{})
	sub.now = func() time.Time { return time.Date(2026, 10, 17, 16, 0, 0, 0, time.UTC) }

	require.NoError(t, sub.Send(context.Background(), sampleRequest()))
	require.Equal(t, 1, queue.Len())

	msg, err := queue.Receive(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)

	var env events.Envelope
	require.NoError(t, json.Unmarshal([]byte(msg.Body), &env))
	assert.Equal(t, "session:s-1", env.Aggregate)
	assert.Equal(t, "req-1", env.CorrelationID)

	var evt events.AppointmentRequestedV1
	require.NoError(t, env.Decode(&evt))
	assert.Equal(t, "Ana Ruiz", evt.PatientName)
	assert.Equal(t, "Cardiología", evt.ServiceName)
	assert.Equal(t, "2026-10-18", evt.Date)
}

func TestMemoryQueue_ReceiveHonoursContext(t *testing.T) {
	queue := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := queue.Receive(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, queue.Send(context.Background(), "a"))
	assert.ErrorIs(t, queue.Send(ctx, "b"), context.Canceled)
}

func TestMemoryQueue_WaitEmpty(t *testing.T) {
	queue := NewMemoryQueue(2)
	require.NoError(t, queue.WaitEmpty(context.Background()))
	require.NoError(t, queue.Send(context.Background(), "a"))

	short, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, queue.WaitEmpty(short), context.DeadlineExceeded)

	go func() {
		_, _ = queue.Receive(context.Background())
	}()
	ctx, cancelWait := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelWait()
	require.NoError(t, queue.WaitEmpty(ctx))
}

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSQueue_Send(t *testing.T) {
	api := &fakeSQS{}
	q := NewSQSQueue(api, "https://sqs.local/queue")
	require.NoError(t, q.Send(context.Background(), `{"ok":true}`))
	assert.Equal(t, "https://sqs.local/queue", aws.ToString(api.input.QueueUrl))
	assert.Equal(t, `{"ok":true}`, aws.ToString(api.input.MessageBody))

	api.err = errors.New("boom")
	assert.ErrorContains(t, q.Send(context.Background(), "x"), "boom")

	assert.Panics(t, func() { NewSQSQueue(api, "") })
}

type fakeChannel struct {
	key string
	msg amqp.Publishing
	err error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.key = key
	f.msg = msg
	return f.err
}

func TestAMQPQueue_Send(t *testing.T) {
	ch := &fakeChannel{}
	q := NewAMQPQueue(ch, "appointments")
	require.NoError(t, q.Send(context.Background(), `{"ok":true}`))
	assert.Equal(t, "appointments", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, []byte(`{"ok":true}`), ch.msg.Body)
	assert.NoError(t, q.Close())

	ch.err = errors.New("channel closed")
	assert.ErrorContains(t, q.Send(context.Background(), "x"), "channel closed")
}

type capturingSender struct {
	mu   sync.Mutex
	msgs []notify.EmailMessage
	err  error
}

func (c *capturingSender) Send(_ context.Context, msg notify.EmailMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return c.err
}

func TestMailSubmitter(t *testing.T) {
	sender := &capturingSender{}
	sub := NewMailSubmitter(sender, MailConfig{ClinicName: "Consultorio Médico", Directory: catalog.Directory{}})

	require.NoError(t, sub.Send(context.Background(), sampleRequest()))
	require.Len(t, sender.msgs, 1)
	msg := sender.msgs[0]
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, "Ana Ruiz", msg.ToName)
	assert.Equal(t, "Confirmación de cita - Cardiología el domingo, 18 de octubre de 2026", msg.Subject)
	assert.Contains(t, msg.Body, "Hola Ana Ruiz")
	assert.Contains(t, msg.Body, "Consultorio Médico")

	bad := sampleRequest()
	bad.Date = "mañana"
	_, err := sub.Message(bad)
	assert.Error(t, err)
}

type blockingSubmitter struct {
	sent chan appointments.AppointmentRequest
	err  error
}

func (b *blockingSubmitter) Send(ctx context.Context, req appointments.AppointmentRequest) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	b.sent <- req
	return b.err
}

func TestFanout_DetachedFromCaller(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWorkflowMetrics(reg)
	ok := &blockingSubmitter{sent: make(chan appointments.AppointmentRequest, 1)}
	failing := &blockingSubmitter{sent: make(chan appointments.AppointmentRequest, 1), err: errors.New("smtp down")}

	f := NewFanout(nil, []Target{
		{Name: "queue", Submitter: ok},
		{Name: "email", Submitter: failing},
		{Name: "disabled"},
	}, WithMetrics(m), WithTimeout(time.Second))
	assert.Equal(t, []string{"queue", "email"}, f.Targets())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.Send(ctx, sampleRequest()))
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, f.Wait(waitCtx))

	assert.Equal(t, "req-1", (<-ok.sent).ID)
	assert.Equal(t, "req-1", (<-failing.sent).ID)

	families, err := reg.Gather()
	require.NoError(t, err)
	statuses := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "clinic_appointments_handoff_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			var transport, status string
			for _, lp := range metric.GetLabel() {
				switch lp.GetName() {
				case "transport":
					transport = lp.GetValue()
				case "status":
					status = lp.GetValue()
				}
			}
			statuses[transport+"/"+status] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{"queue/sent": 1, "email/failed": 1}, statuses)
}

func TestFanout_SendAfterWaitRunsInline(t *testing.T) {
	sink := &blockingSubmitter{sent: make(chan appointments.AppointmentRequest, 1)}
	f := NewFanout(nil, []Target{{Name: "queue", Submitter: sink}}, WithTimeout(time.Second))

	require.NoError(t, f.Wait(context.Background()))
	require.NoError(t, f.Send(context.Background(), sampleRequest()))

	select {
	case got := <-sink.sent:
		assert.Equal(t, "req-1", got.ID)
	default:
		t.Fatal("expected hand-off to complete before Send returned")
	}
}

func TestFanout_ConcurrentSendAndWait(t *testing.T) {
	const sends = 20
	sink := &blockingSubmitter{sent: make(chan appointments.AppointmentRequest, sends)}
	f := NewFanout(nil, []Target{{Name: "queue", Submitter: sink}}, WithTimeout(time.Second))

	var wg sync.WaitGroup
	for i := 0; i < sends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.Send(context.Background(), sampleRequest())
		}()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.Wait(ctx))
	wg.Wait()
	require.NoError(t, f.Wait(ctx))

	assert.Len(t, sink.sent, sends)
}
