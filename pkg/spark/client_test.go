package spark

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newTestClient 创建指向测试服务器的客户端
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&Config{BaseURL: srv.URL, Token: "secret-token"})
}

func TestClient_ListRooms(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/rooms" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = io.WriteString(w, `{"items":[{"id":"r1","title":"Green Forge"},{"id":"r2","title":"Other"}]}`)
	})

	rooms, err := client.ListRooms(context.Background())
	if err != nil {
		t.Fatalf("ListRooms() error = %v", err)
	}
	if len(rooms) != 2 || rooms[0].ID != "r1" || rooms[1].Title != "Other" {
		t.Errorf("unexpected rooms: %+v", rooms)
	}
}

func TestClient_ListRooms_Error(t *testing.T) {
	var observed []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"bad token"}`)
	}))
	defer srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL, Token: "x"}, WithObserver(func(op string, status int) {
		if op != OpListRooms {
			t.Errorf("observer op = %q", op)
		}
		observed = append(observed, status)
	}))

	_, err := client.ListRooms(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if err.Error() != "received error code 401" {
		t.Errorf("Error() = %q", err.Error())
	}
	if len(observed) != 1 || observed[0] != http.StatusUnauthorized {
		t.Errorf("observed = %v", observed)
	}
}

func TestClient_CreateRoom(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rooms" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
			return
		}
		if r.PostForm.Get("title") != "Green Forge" {
			t.Errorf("title = %q", r.PostForm.Get("title"))
		}
		_, _ = io.WriteString(w, `{"id":"new-room","title":"Green Forge"}`)
	})

	room, err := client.CreateRoom(context.Background(), "Green Forge")
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if room.ID != "new-room" {
		t.Errorf("ID = %q", room.ID)
	}
}

func TestClient_DeleteRoom_RequiresNoContent(t *testing.T) {
	status := http.StatusNoContent
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/rooms/r1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(status)
	})

	if err := client.DeleteRoom(context.Background(), "r1"); err != nil {
		t.Fatalf("DeleteRoom() error = %v", err)
	}

	// 200 不是空成功状态
	status = http.StatusOK
	if err := client.DeleteRoom(context.Background(), "r1"); err == nil {
		t.Error("expected error when delete returns 200")
	}
}

func TestClient_CreateMembership(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/memberships" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = r.ParseForm()
		if r.PostForm.Get("roomId") != "r1" ||
			r.PostForm.Get("personEmail") != "foo.bar@acme.com" ||
			r.PostForm.Get("isModerator") != "true" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		_, _ = io.WriteString(w, `{}`)
	})

	err := client.CreateMembership(context.Background(), Membership{
		RoomID:      "r1",
		PersonEmail: "foo.bar@acme.com",
		IsModerator: true,
	})
	if err != nil {
		t.Fatalf("CreateMembership() error = %v", err)
	}
}

func TestClient_PostText_TwoFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		_ = r.ParseForm()
		if len(r.PostForm) != 2 {
			t.Errorf("expected exactly 2 fields, got %v", r.PostForm)
		}
		if r.PostForm.Get("roomId") != "r1" || r.PostForm.Get("text") != "ping 3" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		_, _ = io.WriteString(w, `{}`)
	})

	if err := client.PostText(context.Background(), "r1", "ping 3"); err != nil {
		t.Fatalf("PostText() error = %v", err)
	}
}

func TestClient_PostMultipart_WithFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data; boundary=") {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if got := r.MultipartForm.Value["roomId"]; len(got) != 1 || got[0] != "r1" {
			t.Errorf("roomId = %v", got)
		}
		if got := r.MultipartForm.Value["text"]; len(got) != 1 || got[0] != "'pic'" {
			t.Errorf("text = %v", got)
		}
		if _, ok := r.MultipartForm.Value["markdown"]; ok {
			t.Error("markdown should be absent")
		}

		files := r.MultipartForm.File["files"]
		if len(files) != 1 {
			t.Errorf("files = %v", files)
			return
		}
		if files[0].Filename != "pic" {
			t.Errorf("Filename = %q", files[0].Filename)
		}
		if ct := files[0].Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("file Content-Type = %q", ct)
		}
		f, _ := files[0].Open()
		data, _ := io.ReadAll(f)
		if string(data) != "PNGDATA" {
			t.Errorf("file content = %q", data)
		}
		_, _ = io.WriteString(w, `{}`)
	})

	err := client.PostMultipart(context.Background(), &Message{
		RoomID: "r1",
		Text:   "'pic'",
		File: &MessageFile{
			Name:        "pic",
			ContentType: "image/png",
			Content:     strings.NewReader("PNGDATA"),
		},
	})
	if err != nil {
		t.Fatalf("PostMultipart() error = %v", err)
	}
}

func TestClient_PostMultipart_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	err := client.PostMultipart(context.Background(), &Message{RoomID: "r1", Markdown: "**hi**"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 APIError, got %v", err)
	}
}
