package relay

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/KodaTao/ButtonRelay/pkg/spark"
)

// postedMessage 测试服务器收到的消息
type postedMessage struct {
	Multipart   bool
	Fields      map[string]string
	FieldCount  int
	FileName    string
	FileType    string
	FileContent string
}

// fakeSpark 模拟协作平台 API
type fakeSpark struct {
	mu          sync.Mutex
	rooms       []spark.Room
	nextID      int
	created     []string
	deleted     []string
	memberships []map[string]string
	messages    []postedMessage

	listStatus    int
	messageStatus int
}

// newFakeSpark 启动测试服务器并返回指向它的客户端
func newFakeSpark(t *testing.T, rooms ...spark.Room) (*fakeSpark, *spark.Client) {
	t.Helper()
	f := &fakeSpark{rooms: rooms}
	srv := httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(srv.Close)
	return f, spark.NewClient(&spark.Config{BaseURL: srv.URL, Token: "test-token"})
}

func (f *fakeSpark) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/rooms":
		if f.listStatus != 0 {
			w.WriteHeader(f.listStatus)
			_, _ = io.WriteString(w, `{"message":"listing failed"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": f.rooms})

	case r.Method == http.MethodPost && r.URL.Path == "/rooms":
		_ = r.ParseForm()
		f.nextID++
		room := spark.Room{ID: fmt.Sprintf("created-%d", f.nextID), Title: r.PostForm.Get("title")}
		f.rooms = append(f.rooms, room)
		f.created = append(f.created, room.Title)
		_ = json.NewEncoder(w).Encode(room)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/rooms/"):
		id := strings.TrimPrefix(r.URL.Path, "/rooms/")
		kept := f.rooms[:0]
		for _, room := range f.rooms {
			if room.ID != id {
				kept = append(kept, room)
			}
		}
		f.rooms = kept
		f.deleted = append(f.deleted, id)
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPost && r.URL.Path == "/memberships":
		_ = r.ParseForm()
		f.memberships = append(f.memberships, flatten(r.PostForm))
		_, _ = io.WriteString(w, `{}`)

	case r.Method == http.MethodPost && r.URL.Path == "/messages":
		msg := postedMessage{}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			msg.Multipart = true
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			msg.Fields = flatten(r.MultipartForm.Value)
			msg.FieldCount = len(r.MultipartForm.Value) + len(r.MultipartForm.File)
			if files := r.MultipartForm.File["files"]; len(files) > 0 {
				msg.FileName = files[0].Filename
				msg.FileType = files[0].Header.Get("Content-Type")
				if fh, err := files[0].Open(); err == nil {
					data, _ := io.ReadAll(fh)
					fh.Close()
					msg.FileContent = string(data)
				}
			}
		} else {
			_ = r.ParseForm()
			msg.Fields = flatten(r.PostForm)
			msg.FieldCount = len(r.PostForm)
		}
		f.messages = append(f.messages, msg)

		if f.messageStatus != 0 {
			w.WriteHeader(f.messageStatus)
			return
		}
		_, _ = io.WriteString(w, `{}`)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func flatten(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func (f *fakeSpark) sent() []postedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]postedMessage(nil), f.messages...)
}

func (f *fakeSpark) membershipCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.memberships)
}

func (f *fakeSpark) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}
