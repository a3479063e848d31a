package message

import "testing"

func TestServiceKey(t *testing.T) {
	if got := ServiceKey("HelloService", ""); got != "HelloService" {
		t.Errorf("empty version: got %s, want HelloService", got)
	}
	if got := ServiceKey("HelloService", " v1 "); got != "HelloService-v1" {
		t.Errorf("padded version: got %s, want HelloService-v1", got)
	}
	if got := ServiceKey("HelloService", "   "); got != "HelloService" {
		t.Errorf("blank version: got %s, want HelloService", got)
	}
	if got := ServiceKey("HelloService", "1.0"); got != "HelloService-1.0" {
		t.Errorf("plain version: got %s, want HelloService-1.0", got)
	}
}

func TestRemoteErrorIsError(t *testing.T) {
	var err error = &RemoteError{Message: "boom"}
	if err.Error() != "boom" {
		t.Errorf("got %q, want boom", err.Error())
	}
}
