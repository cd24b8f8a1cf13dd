package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestNormalizeCanonical(t *testing.T) {
	res, err := Normalize(`{"isFood":true,"confidence":0.8,"total":{"kcal":520,"protein_g":30,"carbs_g":60,"fat_g":15},
		"items":[{"name":"arroz","portion":"1 xícara","kcal":200}],"notes":"estimativa"}`)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsFood || res.Total == nil || res.Total.Kcal != 520 || res.Total.FatG != 15 {
		t.Fatalf("got %+v", res)
	}
	if *res.Confidence != 0.8 || len(res.Items) != 1 || res.Items[0].Portion != "1 xícara" || res.Notes != "estimativa" {
		t.Fatalf("got %+v", res)
	}
}

func TestNormalizeAlternateNames(t *testing.T) {
	raw := "Here you go:\n```json\n" + `{"is_food":"true","confidence":85,
		"foods":[{"food":"Feijão","quantity":"1 concha","calories":"140 kcal","protein":9,"carbohydrates":25,"fats":"0,5g"},
		         {"label":"Bife","serving":"100g","calories":250,"proteins":26,"carbs":0,"fat":15}]}` + "\n```"
	res, err := Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsFood {
		t.Fatal("isFood should be true")
	}
	if res.Confidence == nil || *res.Confidence != 0.85 {
		t.Fatalf("confidence = %v", res.Confidence)
	}
	if len(res.Items) != 2 || res.Items[0].Name != "Feijão" || res.Items[0].Portion != "1 concha" {
		t.Fatalf("items = %+v", res.Items)
	}
	if res.Items[0].Kcal != 140 || res.Items[0].FatG != 0.5 {
		t.Fatalf("item 0 = %+v", res.Items[0])
	}
	// no total in reply: summed from items
	if res.Total == nil || res.Total.Kcal != 390 || res.Total.ProteinG != 35 {
		t.Fatalf("total = %+v", res.Total)
	}
}

func TestNormalizeTopLevelTotals(t *testing.T) {
	res, err := Normalize(`{"calories":300,"protein":10,"carbs":40,"fat":8}`)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsFood || res.Total == nil || res.Total.Kcal != 300 || res.Total.CarbsG != 40 {
		t.Fatalf("got %+v", res)
	}
}

func TestNormalizeNotFood(t *testing.T) {
	res, err := Normalize(`{"isFood":false,"notes":"é um gato","total":{"kcal":0}}`)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsFood || res.Total != nil || res.Notes != "é um gato" {
		t.Fatalf("got %+v", res)
	}
}

func TestNormalizeGarbage(t *testing.T) {
	if _, err := Normalize("desculpe, não consigo"); !errors.Is(err, ErrUnparseable) {
		t.Fatalf("err = %v", err)
	}
}

type fakeVision struct {
	out string
	err error
	got string
}

func (f *fakeVision) Describe(_ context.Context, dataURL string) (string, error) {
	f.got = dataURL
	return f.out, f.err
}

func router(s *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/analyze", s.Handle)
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

var jpeg = base64.StdEncoding.EncodeToString([]byte("\xff\xd8\xff\xe0fake-jpeg"))

func TestHandleOK(t *testing.T) {
	v := &fakeVision{out: `{"isFood":true,"total":{"kcal":100}}`}
	w := post(router(NewService(v, 0)), `{"image":"data:image/jpeg;base64,`+jpeg+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	var res Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.IsFood || res.Total.Kcal != 100 {
		t.Fatalf("got %+v", res)
	}
	if !strings.HasPrefix(v.got, "data:image/jpeg;base64,") {
		t.Errorf("forwarded %q", v.got)
	}
}

func TestHandlePlainBase64(t *testing.T) {
	v := &fakeVision{out: `{"isFood":false}`}
	w := post(router(NewService(v, 0)), `{"imageBase64":"`+jpeg+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	if !strings.HasPrefix(v.got, "data:image/jpeg;base64,") {
		t.Errorf("mime not sniffed: %q", v.got)
	}
}

func TestHandleErrors(t *testing.T) {
	big := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 2048))
	cases := []struct {
		name   string
		svc    *Service
		body   string
		status int
	}{
		{"not configured", NewService(nil, 0), `{"image":"` + jpeg + `"}`, http.StatusInternalServerError},
		{"bad json", NewService(&fakeVision{}, 0), `{`, http.StatusBadRequest},
		{"missing image", NewService(&fakeVision{}, 0), `{}`, http.StatusBadRequest},
		{"bad base64", NewService(&fakeVision{}, 0), `{"image":"@@@@"}`, http.StatusBadRequest},
		{"too large", NewService(&fakeVision{}, 1024), `{"image":"` + big + `"}`, http.StatusRequestEntityTooLarge},
		{"upstream down", NewService(&fakeVision{err: ErrUpstream}, 0), `{"image":"` + jpeg + `"}`, http.StatusBadGateway},
		{"upstream garbage", NewService(&fakeVision{out: "sorry"}, 0), `{"image":"` + jpeg + `"}`, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := post(router(tc.svc), tc.body)
			if w.Code != tc.status {
				t.Fatalf("status %d, want %d: %s", w.Code, tc.status, w.Body)
			}
			if !strings.Contains(w.Body.String(), `"error"`) {
				t.Errorf("no error field: %s", w.Body)
			}
		})
	}
}

func TestClientDescribe(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotReq)
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"isFood\":true}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL, "", time.Second)
	out, err := c.Describe(context.Background(), "data:image/png;base64,AAAA")
	if err != nil {
		t.Fatal(err)
	}
	if out != `{"isFood":true}` {
		t.Errorf("out = %q", out)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth = %q", gotAuth)
	}
	if len(gotReq.Messages) != 1 || len(gotReq.Messages[0].Content) != 2 ||
		gotReq.Messages[0].Content[1].ImageURL.URL != "data:image/png;base64,AAAA" {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestClientUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient("k", srv.URL, "m", time.Second).Describe(context.Background(), "data:,")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v", err)
	}
}
