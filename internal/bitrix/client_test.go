package bitrix

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{WebhookURL: srv.URL + "/rest/1/secret/"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestSendMessage(t *testing.T) {
	var path string
	var body map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"result": 1234}`))
	})

	if err := c.SendMessage(context.Background(), "chat42", "Привет"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if path != "/rest/1/secret/im.message.add" {
		t.Errorf("path = %q", path)
	}
	if body["DIALOG_ID"] != "chat42" || body["MESSAGE"] != "Привет" {
		t.Errorf("body = %v", body)
	}
}

func TestSendMessageErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		apiErr  bool
	}{
		{
			name: "api error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"ACCESS_DENIED","error_description":"no scope"}`))
			},
			apiErr: true,
		},
		{
			name: "false result",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"result": false}`))
			},
			apiErr: true,
		},
		{
			name: "bad gateway",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "<html>", http.StatusBadGateway)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			err := c.SendMessage(context.Background(), "1", "x")
			if err == nil {
				t.Fatal("SendMessage() error = nil")
			}
			var apiErr *APIError
			if got := errors.As(err, &apiErr); got != tt.apiErr {
				t.Errorf("errors.As(APIError) = %v, want %v (err %v)", got, tt.apiErr, err)
			}
		})
	}
}

func TestSendMessageTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, _ := NewClient(Config{WebhookURL: srv.URL, Timeout: 50 * time.Millisecond})
	if err := c.SendMessage(context.Background(), "1", "x"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("SendMessage() error = %v, want deadline exceeded", err)
	}
}

func TestCreateTaskAndGetUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/1/secret/tasks.task.add":
			var body struct {
				Fields map[string]string `json:"fields"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.Fields["RESPONSIBLE_ID"] != "7" || body.Fields["PRIORITY"] != "2" {
				t.Errorf("fields = %v", body.Fields)
			}
			_, _ = w.Write([]byte(`{"result":{"task":{"id":"991"}}}`))
		case "/rest/1/secret/user.get":
			_, _ = w.Write([]byte(`{"result":[{"ID":"5","NAME":"Анна","LAST_NAME":"Петрова","EMAIL":"a@corp.ru","WORK_POSITION":"Бухгалтер","UF_DEPARTMENT":[3]}]}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})

	id, err := c.CreateTask(context.Background(), "Эскалация", "desc", "7")
	if err != nil || id != "991" {
		t.Errorf("CreateTask() = %q, %v, want 991", id, err)
	}

	u, err := c.GetUser(context.Background(), "5")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if u.FullName() != "Анна Петрова" || u.WorkPosition != "Бухгалтер" {
		t.Errorf("GetUser() = %+v", u)
	}
}

func TestNewClientEndpoints(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("NewClient() error = %v, want ErrNotConfigured", err)
	}
	c, err := NewClient(Config{BaseURL: "https://corp.bitrix24.ru/", AccessToken: "tok"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if c.endpoint != "https://corp.bitrix24.ru/rest/tok" {
		t.Errorf("endpoint = %q", c.endpoint)
	}
}
