package report

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/findtail/pkg/config"
	"github.com/nao1215/findtail/pkg/database"
	"github.com/nao1215/findtail/pkg/middleware"
	"github.com/nao1215/findtail/pkg/storage"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testJWTSecret     = "test-secret"
	testInternalToken = "test-internal-token"
)

// testUser はリクエストを送信するユーザー。IDが空の場合は未認証として扱う。
type testUser struct {
	ID   string
	Role string
}

var (
	anonymous    = testUser{}
	reporter     = testUser{ID: "volunteer-1", Role: middleware.RoleVolunteer}
	stranger     = testUser{ID: "volunteer-2", Role: middleware.RoleVolunteer}
	shelterOwner = testUser{ID: "shelter-owner-1", Role: middleware.RoleShelter}
	otherShelter = testUser{ID: "shelter-owner-2", Role: middleware.RoleShelter}
)

// notificationRecorder はメッセージングサービスのモックが受け取った通知を記録する。
type notificationRecorder struct {
	mu   sync.Mutex
	sent []notificationRequest
}

func (r *notificationRecorder) all() []notificationRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notificationRequest(nil), r.sent...)
}

// newMockShelterService はシェルターサービスの内部APIを模したテストサーバーを生成する。
// shelter-1 の所有者は shelter-owner-1。shelter-owner-2 はシェルターを持たない。
func newMockShelterService(t *testing.T) *httptest.Server {
	t.Helper()

	const shelter = `{"id":"shelter-1","owner_id":"shelter-owner-1","name":"Сірко"}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/internal/shelters/shelter-1", "/api/v1/internal/shelters/by-owner/shelter-owner-1":
			fmt.Fprint(w, shelter)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"not found"}`)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

// newMockMessagingService は通知作成APIを模したテストサーバーを生成する。
func newMockMessagingService(t *testing.T) (*httptest.Server, *notificationRecorder) {
	t.Helper()

	rec := &notificationRecorder{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req notificationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			rec.mu.Lock()
			rec.sent = append(rec.sent, req)
			rec.mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"n-1"}`)
	}))
	t.Cleanup(ts.Close)
	return ts, rec
}

// setupTestServer はテスト用の発見報告サーバーを構築する。
func setupTestServer(t *testing.T) (*Server, *gin.Engine, *notificationRecorder) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(t.Context(), db); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("ストレージの作成に失敗: %v", err)
	}

	messaging, rec := newMockMessagingService(t)
	cfg := config.Default(config.ServiceReport)
	cfg.JWTSecret = testJWTSecret
	cfg.InternalToken = testInternalToken
	cfg.Services.Shelter = newMockShelterService(t).URL
	cfg.Services.Messaging = messaging.URL

	s := newServer(cfg, db, store, zap.NewNop())
	return s, s.router, rec
}

// authorize はユーザーのJWTをリクエストに設定する。
func authorize(t *testing.T, req *http.Request, user testUser) {
	t.Helper()
	if user.ID == "" {
		return
	}
	token, err := middleware.GenerateJWT(testJWTSecret, middleware.Identity{
		UserID:    user.ID,
		Email:     user.ID + "@example.com",
		Role:      user.Role,
		SessionID: "session-" + user.ID,
	})
	if err != nil {
		t.Fatalf("トークン生成に失敗: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// doRequest はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
func doRequest(t *testing.T, router *gin.Engine, method, path string, user testUser, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	authorize(t, req, user)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// oversizedPNG は画素データを持たず、幅と高さだけが巨大なPNGを生成する。
func oversizedPNG(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := []byte("IHDR")
	chunk = binary.BigEndian.AppendUint32(chunk, w)
	chunk = binary.BigEndian.AppendUint32(chunk, h)
	chunk = append(chunk, 8, 0, 0, 0, 0)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(chunk)-4))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

// parseJSON はレスポンスボディをmapにデコードするヘルパー関数。
func parseJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSONのデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return result
}

// parseJSONArray はレスポンスボディをスライスにデコードするヘルパー関数。
func parseJSONArray(t *testing.T, w *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var result []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSON配列のデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return result
}

// createTestReport はAPI経由で発見報告を送信し、IDを返すヘルパー関数。
func createTestReport(t *testing.T, router *gin.Engine, user testUser, shelterID string) string {
	t.Helper()
	w := doRequest(t, router, http.MethodPost, "/api/v1/reports", user, map[string]string{
		"species":       "dog",
		"description":   "Рудий пес з нашийником",
		"location":      "Київ, Поділ",
		"contact_phone": "+380501234567",
		"shelter_id":    shelterID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("発見報告の送信に失敗: status=%d, body=%s", w.Code, w.Body.String())
	}
	return parseJSON(t, w)["id"].(string)
}

// TestHandleCreate は発見報告の送信を検証する。
func TestHandleCreate(t *testing.T) {
	t.Parallel()

	t.Run("シェルター宛ての報告で所有者に通知されること", func(t *testing.T) {
		t.Parallel()
		_, router, rec := setupTestServer(t)

		id := createTestReport(t, router, reporter, "shelter-1")

		sent := rec.all()
		if len(sent) != 1 {
			t.Fatalf("通知数: got %d, want 1", len(sent))
		}
		if sent[0].UserID != shelterOwner.ID || sent[0].Kind != "found_report" {
			t.Errorf("通知内容: got %+v", sent[0])
		}
		if sent[0].Link != "/reports/"+id {
			t.Errorf("通知のリンク: got %q, want /reports/%s", sent[0].Link, id)
		}
	})

	t.Run("シェルター指定なしの場合は通知されないこと", func(t *testing.T) {
		t.Parallel()
		_, router, rec := setupTestServer(t)

		createTestReport(t, router, reporter, "")
		if got := len(rec.all()); got != 0 {
			t.Errorf("通知数: got %d, want 0", got)
		}
	})

	t.Run("存在しないシェルターは400になること", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		w := doRequest(t, router, http.MethodPost, "/api/v1/reports", reporter, map[string]string{
			"species":     "cat",
			"description": "Сіра кішка",
			"location":    "Львів",
			"shelter_id":  "missing",
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("未認証の場合は401になること", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		w := doRequest(t, router, http.MethodPost, "/api/v1/reports", anonymous, map[string]string{
			"species":     "cat",
			"description": "Сіра кішка",
			"location":    "Львів",
		})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestListing は一覧系エンドポイントを検証する。
func TestListing(t *testing.T) {
	t.Parallel()

	_, router, _ := setupTestServer(t)
	routed := createTestReport(t, router, reporter, "shelter-1")
	createTestReport(t, router, stranger, "")

	t.Run("公開一覧は認証なしで取得できること", func(t *testing.T) {
		t.Parallel()
		items := parseJSONArray(t, doRequest(t, router, http.MethodGet, "/api/v1/reports", anonymous, nil))
		if len(items) != 2 {
			t.Errorf("件数: got %d, want 2", len(items))
		}
	})

	t.Run("自分の報告だけが返ること", func(t *testing.T) {
		t.Parallel()
		items := parseJSONArray(t, doRequest(t, router, http.MethodGet, "/api/v1/reports/mine", reporter, nil))
		if len(items) != 1 || items[0]["id"] != routed {
			t.Errorf("自分の報告: got %v", items)
		}
	})

	t.Run("シェルター宛ての報告だけが返ること", func(t *testing.T) {
		t.Parallel()
		items := parseJSONArray(t, doRequest(t, router, http.MethodGet, "/api/v1/reports/shelter", shelterOwner, nil))
		if len(items) != 1 || items[0]["id"] != routed {
			t.Errorf("シェルター宛ての報告: got %v", items)
		}
	})

	t.Run("シェルター未登録の場合は404になること", func(t *testing.T) {
		t.Parallel()
		w := doRequest(t, router, http.MethodGet, "/api/v1/reports/shelter", otherShelter, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("ボランティアはシェルター宛て一覧を取得できないこと", func(t *testing.T) {
		t.Parallel()
		w := doRequest(t, router, http.MethodGet, "/api/v1/reports/shelter", reporter, nil)
		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}

// TestAccessAndStatus は詳細取得の権限と状態更新を検証する。
func TestAccessAndStatus(t *testing.T) {
	t.Parallel()

	t.Run("報告者と振り分け先だけが詳細を取得できること", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)
		id := createTestReport(t, router, reporter, "shelter-1")

		for _, tt := range []struct {
			user testUser
			want int
		}{
			{reporter, http.StatusOK},
			{shelterOwner, http.StatusOK},
			{stranger, http.StatusForbidden},
			{otherShelter, http.StatusForbidden},
		} {
			w := doRequest(t, router, http.MethodGet, "/api/v1/reports/"+id, tt.user, nil)
			if w.Code != tt.want {
				t.Errorf("%s のステータスコード: got %d, want %d", tt.user.ID, w.Code, tt.want)
			}
		}
	})

	t.Run("シェルターが解決すると報告者に通知されること", func(t *testing.T) {
		t.Parallel()
		_, router, rec := setupTestServer(t)
		id := createTestReport(t, router, reporter, "shelter-1")

		w := doRequest(t, router, http.MethodPut, "/api/v1/reports/"+id+"/status", shelterOwner, map[string]string{"status": "resolved"})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}
		if got := parseJSON(t, w)["status"]; got != "resolved" {
			t.Errorf("status: got %v, want resolved", got)
		}

		sent := rec.all()
		if len(sent) != 2 {
			t.Fatalf("通知数: got %d, want 2", len(sent))
		}
		if sent[1].UserID != reporter.ID || sent[1].Kind != "report_resolved" {
			t.Errorf("解決通知: got %+v", sent[1])
		}

		// 解決済みの報告は公開一覧に含まれない。
		items := parseJSONArray(t, doRequest(t, router, http.MethodGet, "/api/v1/reports", anonymous, nil))
		if len(items) != 0 {
			t.Errorf("公開一覧: got %v", items)
		}
	})

	t.Run("報告者自身が解決した場合は通知されないこと", func(t *testing.T) {
		t.Parallel()
		_, router, rec := setupTestServer(t)
		id := createTestReport(t, router, reporter, "")

		w := doRequest(t, router, http.MethodPut, "/api/v1/reports/"+id+"/status", reporter, map[string]string{"status": "resolved"})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		if got := len(rec.all()); got != 0 {
			t.Errorf("通知数: got %d, want 0", got)
		}
	})

	t.Run("不正な状態は400になること", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)
		id := createTestReport(t, router, reporter, "")

		w := doRequest(t, router, http.MethodPut, "/api/v1/reports/"+id+"/status", reporter, map[string]string{"status": "closed"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestPhoto は発見報告の写真を検証する。
func TestPhoto(t *testing.T) {
	t.Parallel()

	uploadData := func(t *testing.T, router *gin.Engine, id string, user testUser, data []byte) *httptest.ResponseRecorder {
		t.Helper()

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, _ := mw.CreateFormFile("file", "found.png")
		_, _ = part.Write(data)
		_ = mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/"+id+"/photo", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		authorize(t, req, user)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}
	upload := func(t *testing.T, router *gin.Engine, id string, user testUser) *httptest.ResponseRecorder {
		t.Helper()

		var img bytes.Buffer
		if err := png.Encode(&img, image.NewGray(image.Rect(0, 0, 10, 10))); err != nil {
			t.Fatalf("PNGのエンコードに失敗: %v", err)
		}
		return uploadData(t, router, id, user, img.Bytes())
	}

	t.Run("報告者は写真を登録して公開URLで取得できること", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)
		id := createTestReport(t, router, reporter, "")

		w := doRequest(t, router, http.MethodGet, "/api/v1/reports/"+id+"/photo", anonymous, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("写真未登録時のステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}

		w = upload(t, router, id, reporter)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}
		photoURL, _ := parseJSON(t, w)["photo_url"].(string)
		if !strings.HasSuffix(photoURL, "/photo") {
			t.Fatalf("photo_url: got %q", photoURL)
		}

		w = doRequest(t, router, http.MethodGet, photoURL, anonymous, nil)
		if w.Code != http.StatusOK {
			t.Errorf("写真取得のステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("解像度が上限を超える画像は400になり写真が登録されないこと", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)
		id := createTestReport(t, router, reporter, "")

		w := uploadData(t, router, id, reporter, oversizedPNG(16000, 16000))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
		}

		w = doRequest(t, router, http.MethodGet, "/api/v1/reports/"+id+"/photo", anonymous, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("写真取得のステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("報告者以外は写真を登録できないこと", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)
		id := createTestReport(t, router, reporter, "")

		w := upload(t, router, id, stranger)
		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}
