package mqtt

// FakeClient records commands and system events for test assertions.
type FakeClient struct {
	// Commands contains the command payloads sent, in order ("ON", "OFF", "" for a query).
	Commands []string

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// CommandError, if set, will be returned by PowerOn, PowerOff and QueryPower.
	CommandError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakeClient creates a FakeClient for testing.
func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

// PowerOn records an "ON" command.
func (f *FakeClient) PowerOn() error {
	return f.record(PayloadOn)
}

// PowerOff records an "OFF" command.
func (f *FakeClient) PowerOff() error {
	return f.record(PayloadOff)
}

// QueryPower records a status query.
func (f *FakeClient) QueryPower() error {
	return f.record(PayloadQuery)
}

func (f *FakeClient) record(payload string) error {
	if f.CommandError != nil {
		return f.CommandError
	}
	f.Commands = append(f.Commands, payload)
	return nil
}

// LastCommand returns the most recent command payload.
func (f *FakeClient) LastCommand() (string, bool) {
	if len(f.Commands) == 0 {
		return "", false
	}
	return f.Commands[len(f.Commands)-1], true
}

// PublishSystem records the system event.
func (f *FakeClient) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake client is "connected".
func (f *FakeClient) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded commands and events.
func (f *FakeClient) Reset() {
	f.Commands = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.CommandError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
