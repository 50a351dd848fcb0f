package messaging

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestfund/lead-crm/internal/hub"
	"github.com/crestfund/lead-crm/internal/model"
	"github.com/crestfund/lead-crm/pkg/twilio"
)

type fakeStore struct {
	conversation *model.Conversation
	bySuffix     *model.Conversation
	inserted     []model.Message
	statusByID   map[string]model.MessageStatus
	carrierByID  map[string]string
	touched      []string
}

func newFakeMsgStore() *fakeStore {
	return &fakeStore{
		statusByID:  map[string]model.MessageStatus{},
		carrierByID: map[string]string{},
	}
}

func (f *fakeStore) GetConversation(_ context.Context, id string) (*model.Conversation, error) {
	if f.conversation != nil && f.conversation.ID == id {
		return f.conversation, nil
	}
	return nil, nil
}

func (f *fakeStore) InsertMessage(_ context.Context, m model.Message) (*model.Message, error) {
	m.ID = "msg-1"
	f.inserted = append(f.inserted, m)
	return &m, nil
}

func (f *fakeStore) UpdateMessageStatus(_ context.Context, id string, status model.MessageStatus, carrierID string) error {
	f.statusByID[id] = status
	f.carrierByID[id] = carrierID
	return nil
}

func (f *fakeStore) ListMessages(_ context.Context, _ string, _ int) ([]model.Message, error) {
	return f.inserted, nil
}

func (f *fakeStore) FindConversationByPhoneSuffix(_ context.Context, _ string) (*model.Conversation, error) {
	return f.bySuffix, nil
}

func (f *fakeStore) TouchConversation(_ context.Context, id string) error {
	f.touched = append(f.touched, id)
	return nil
}

type fakeCarrier struct {
	resp *twilio.SendResponse
	err  error
	last twilio.SendRequest
}

func (f *fakeCarrier) SendSMS(_ context.Context, req twilio.SendRequest) (*twilio.SendResponse, error) {
	f.last = req
	return f.resp, f.err
}

type fakeNotifier struct {
	roomEvents   []hub.Event
	globalEvents []hub.Event
}

func (f *fakeNotifier) NotifyRoom(conversationID string, event hub.Event) {
	event.ConversationID = conversationID
	f.roomEvents = append(f.roomEvents, event)
}

func (f *fakeNotifier) NotifyAll(event hub.Event) {
	f.globalEvents = append(f.globalEvents, event)
}

func TestSend_Success(t *testing.T) {
	fs := newFakeMsgStore()
	fs.conversation = &model.Conversation{ID: "conv-1", Phone: "+15550101234"}
	carrier := &fakeCarrier{resp: &twilio.SendResponse{SID: "SM42", Status: "queued"}}
	notifier := &fakeNotifier{}

	svc := NewService(fs, carrier, notifier, "+15550109999")
	msg, err := svc.Send(context.Background(), "conv-1", "hello", "broker-1")
	require.NoError(t, err)

	assert.Equal(t, model.MessageStatusSent, msg.Status)
	assert.Equal(t, "SM42", msg.CarrierID)
	assert.Equal(t, "+15550101234", carrier.last.To)
	assert.Equal(t, "+15550109999", carrier.last.From)
	assert.Equal(t, model.MessageStatusSent, fs.statusByID["msg-1"])
	assert.Equal(t, []string{"conv-1"}, fs.touched)

	require.Len(t, notifier.roomEvents, 1)
	assert.Equal(t, hub.EventNewMessage, notifier.roomEvents[0].Type)
	assert.Equal(t, "conv-1", notifier.roomEvents[0].ConversationID)
	assert.Empty(t, notifier.globalEvents)
}

func TestSend_CarrierFailureIsData(t *testing.T) {
	fs := newFakeMsgStore()
	fs.conversation = &model.Conversation{ID: "conv-1", Phone: "+15550101234"}
	carrier := &fakeCarrier{err: eris.New("twilio: unexpected status 400")}
	notifier := &fakeNotifier{}

	svc := NewService(fs, carrier, notifier, "+15550109999")
	msg, err := svc.Send(context.Background(), "conv-1", "hello", "broker-1")
	require.NoError(t, err)

	assert.Equal(t, model.MessageStatusFailed, msg.Status)
	assert.Equal(t, model.MessageStatusFailed, fs.statusByID["msg-1"])
	// Event still fires; the UI shows the failed bubble.
	assert.Len(t, notifier.roomEvents, 1)
}

func TestSend_UnknownConversation(t *testing.T) {
	svc := NewService(newFakeMsgStore(), &fakeCarrier{}, &fakeNotifier{}, "+15550109999")

	_, err := svc.Send(context.Background(), "missing", "hello", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conversation not found")
}

func TestHandleInbound_RoutesBySuffixAndBroadcastsGlobally(t *testing.T) {
	fs := newFakeMsgStore()
	fs.bySuffix = &model.Conversation{ID: "conv-7", Phone: "(555) 010-1234"}
	notifier := &fakeNotifier{}

	svc := NewService(fs, &fakeCarrier{}, notifier, "+15550109999")
	msg, err := svc.HandleInbound(context.Background(), "+15550101234", "yes I'm interested", "SM_inbound_1")
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, model.DirectionInbound, msg.Direction)
	assert.Equal(t, model.MessageStatusDelivered, msg.Status)
	assert.Equal(t, "conv-7", msg.ConversationID)
	assert.Equal(t, "SM_inbound_1", msg.CarrierID)
	assert.Equal(t, []string{"conv-7"}, fs.touched)

	assert.Empty(t, notifier.roomEvents)
	require.Len(t, notifier.globalEvents, 1)
	assert.Equal(t, "conv-7", notifier.globalEvents[0].ConversationID)
}

func TestHandleInbound_NoMatchIsDropped(t *testing.T) {
	fs := newFakeMsgStore()
	notifier := &fakeNotifier{}

	svc := NewService(fs, &fakeCarrier{}, notifier, "+15550109999")
	msg, err := svc.HandleInbound(context.Background(), "+19998887777", "who dis", "SM_inbound_2")
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.Empty(t, fs.inserted)
	assert.Empty(t, notifier.globalEvents)
}
