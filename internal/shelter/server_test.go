package shelter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/findtail/pkg/config"
	"github.com/nao1215/findtail/pkg/database"
	"github.com/nao1215/findtail/pkg/middleware"
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
	anonymous = testUser{}
	owner     = testUser{ID: "owner-1", Role: middleware.RoleShelter}
	other     = testUser{ID: "owner-2", Role: middleware.RoleShelter}
	volunteer = testUser{ID: "volunteer-1", Role: middleware.RoleVolunteer}
)

// setupTestServer はテスト用のシェルターサーバーをインメモリSQLiteで構築する。
func setupTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(t.Context(), db); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	cfg := config.Default(config.ServiceShelter)
	cfg.JWTSecret = testJWTSecret
	cfg.InternalToken = testInternalToken

	s := newServer(cfg, db, zap.NewNop())
	return s, s.router
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
	if user.ID != "" {
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

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// doInternalRequest は内部トークン付きのリクエストを実行するヘルパー関数。
func doInternalRequest(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(middleware.HeaderInternalToken, token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
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

// createTestShelter はAPI経由でシェルターを登録し、IDを返すヘルパー関数。
func createTestShelter(t *testing.T, router *gin.Engine, user testUser, name, city string) string {
	t.Helper()
	w := doRequest(t, router, http.MethodPost, "/api/v1/shelters", user, map[string]string{
		"name":        name,
		"city":        city,
		"description": "Притулок для собак і котів",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("シェルター登録に失敗: status=%d, body=%s", w.Code, w.Body.String())
	}
	return parseJSON(t, w)["id"].(string)
}

// TestHealthCheck はヘルスチェックエンドポイントの正常動作を検証する。
func TestHealthCheck(t *testing.T) {
	t.Parallel()

	_, router := setupTestServer(t)
	w := doRequest(t, router, http.MethodGet, "/health", anonymous, nil)

	if w.Code != http.StatusOK {
		t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}
	if got := parseJSON(t, w)["service"]; got != "shelter" {
		t.Errorf("service: got %v, want shelter", got)
	}
}

// TestHandleCreate はシェルター登録を検証する。
func TestHandleCreate(t *testing.T) {
	t.Parallel()

	t.Run("シェルターアカウントが登録できること", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)

		w := doRequest(t, router, http.MethodPost, "/api/v1/shelters", owner, map[string]string{
			"name":  "Сірко",
			"city":  "Київ",
			"email": "info@sirko.org.ua",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}
		body := parseJSON(t, w)
		if body["owner_id"] != owner.ID {
			t.Errorf("owner_id: got %v, want %s", body["owner_id"], owner.ID)
		}
		if body["name"] != "Сірко" {
			t.Errorf("name: got %v, want Сірко", body["name"])
		}
	})

	t.Run("2つ目のシェルターは409になること", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)

		createTestShelter(t, router, owner, "Перший", "Львів")
		w := doRequest(t, router, http.MethodPost, "/api/v1/shelters", owner, map[string]string{
			"name": "Другий",
			"city": "Львів",
		})
		if w.Code != http.StatusConflict {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusConflict)
		}
	})

	t.Run("存在確認の後に同じ所有者のシェルターが登録された場合も409になること", func(t *testing.T) {
		t.Parallel()
		s, router := setupTestServer(t)

		// 挿入の直前に同じアカウントから別のリクエストが登録した状態を再現する
		if _, err := s.db.ExecContext(t.Context(), `CREATE TRIGGER concurrent_create BEFORE INSERT ON shelters
			WHEN NEW.id <> 'concurrent'
			BEGIN
				INSERT INTO shelters (id, owner_id, name, city, created_at, updated_at)
				VALUES ('concurrent', NEW.owner_id, 'Перший', NEW.city, NEW.created_at, NEW.updated_at);
			END`); err != nil {
			t.Fatalf("トリガーの作成に失敗: %v", err)
		}

		w := doRequest(t, router, http.MethodPost, "/api/v1/shelters", owner, map[string]string{
			"name": "Другий",
			"city": "Львів",
		})
		if w.Code != http.StatusConflict {
			t.Errorf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusConflict, w.Body.String())
		}
	})

	t.Run("ボランティアは登録できないこと", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)

		w := doRequest(t, router, http.MethodPost, "/api/v1/shelters", volunteer, map[string]string{
			"name": "Х",
			"city": "Одеса",
		})
		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("未認証の場合は401になること", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)

		w := doRequest(t, router, http.MethodPost, "/api/v1/shelters", anonymous, map[string]string{
			"name": "Х",
			"city": "Одеса",
		})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("必須項目が欠けている場合は400になること", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)

		w := doRequest(t, router, http.MethodPost, "/api/v1/shelters", owner, map[string]string{
			"name": "Без міста",
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestHandleList はシェルター一覧の検索を検証する。
func TestHandleList(t *testing.T) {
	t.Parallel()

	_, router := setupTestServer(t)
	createTestShelter(t, router, owner, "Happy Paw", "Київ")
	createTestShelter(t, router, other, "Second Chance", "Харків")

	t.Run("認証なしで全件取得できること", func(t *testing.T) {
		t.Parallel()
		w := doRequest(t, router, http.MethodGet, "/api/v1/shelters", anonymous, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		if got := len(parseJSONArray(t, w)); got != 2 {
			t.Errorf("件数: got %d, want 2", got)
		}
	})

	t.Run("都市で絞り込めること", func(t *testing.T) {
		t.Parallel()
		w := doRequest(t, router, http.MethodGet, "/api/v1/shelters?city="+url.QueryEscape("Харків"), anonymous, nil)
		items := parseJSONArray(t, w)
		if len(items) != 1 || items[0]["name"] != "Second Chance" {
			t.Errorf("検索結果: got %v", items)
		}
	})

	t.Run("名前の部分一致で検索できること", func(t *testing.T) {
		t.Parallel()
		w := doRequest(t, router, http.MethodGet, "/api/v1/shelters?q=happy", anonymous, nil)
		items := parseJSONArray(t, w)
		if len(items) != 1 || items[0]["name"] != "Happy Paw" {
			t.Errorf("検索結果: got %v", items)
		}
	})

	t.Run("不正なlimitは400になること", func(t *testing.T) {
		t.Parallel()
		w := doRequest(t, router, http.MethodGet, "/api/v1/shelters?limit=x", anonymous, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestHandleGetMine は自分のシェルター取得を検証する。
func TestHandleGetMine(t *testing.T) {
	t.Parallel()

	_, router := setupTestServer(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/shelters/mine", owner, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("未登録時のステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
	}

	id := createTestShelter(t, router, owner, "Мій притулок", "Дніпро")
	w = doRequest(t, router, http.MethodGet, "/api/v1/shelters/mine", owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}
	if got := parseJSON(t, w)["id"]; got != id {
		t.Errorf("id: got %v, want %s", got, id)
	}
}

// TestHandleUpdateAndDelete は所有者チェック付きの更新・削除を検証する。
func TestHandleUpdateAndDelete(t *testing.T) {
	t.Parallel()

	t.Run("所有者は更新できること", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)
		id := createTestShelter(t, router, owner, "Old", "Київ")

		w := doRequest(t, router, http.MethodPut, "/api/v1/shelters/"+id, owner, map[string]string{
			"name": "New",
			"city": "Ірпінь",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}
		body := parseJSON(t, w)
		if body["name"] != "New" || body["city"] != "Ірпінь" {
			t.Errorf("更新結果: got %v", body)
		}
	})

	t.Run("他人のシェルターは更新できないこと", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)
		id := createTestShelter(t, router, owner, "Old", "Київ")

		w := doRequest(t, router, http.MethodPut, "/api/v1/shelters/"+id, other, map[string]string{
			"name": "Hijack",
			"city": "Київ",
		})
		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("削除後は404になること", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)
		id := createTestShelter(t, router, owner, "Temp", "Київ")

		w := doRequest(t, router, http.MethodDelete, "/api/v1/shelters/"+id, owner, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		w = doRequest(t, router, http.MethodGet, "/api/v1/shelters/"+id, anonymous, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("存在しないシェルターの削除は404になること", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)

		w := doRequest(t, router, http.MethodDelete, "/api/v1/shelters/missing", owner, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestInternalAPI は内部APIの認証と取得を検証する。
func TestInternalAPI(t *testing.T) {
	t.Parallel()

	_, router := setupTestServer(t)
	id := createTestShelter(t, router, owner, "Internal", "Київ")

	t.Run("内部トークンでIDから取得できること", func(t *testing.T) {
		t.Parallel()
		w := doInternalRequest(router, http.MethodGet, "/api/v1/internal/shelters/"+id, testInternalToken)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		if got := parseJSON(t, w)["owner_id"]; got != owner.ID {
			t.Errorf("owner_id: got %v, want %s", got, owner.ID)
		}
	})

	t.Run("所有者IDから取得できること", func(t *testing.T) {
		t.Parallel()
		w := doInternalRequest(router, http.MethodGet, "/api/v1/internal/shelters/by-owner/"+owner.ID, testInternalToken)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		if got := parseJSON(t, w)["id"]; got != id {
			t.Errorf("id: got %v, want %s", got, id)
		}
	})

	t.Run("シェルターのない所有者は404になること", func(t *testing.T) {
		t.Parallel()
		w := doInternalRequest(router, http.MethodGet, "/api/v1/internal/shelters/by-owner/nobody", testInternalToken)
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("トークンが誤っている場合は401になること", func(t *testing.T) {
		t.Parallel()
		w := doInternalRequest(router, http.MethodGet, "/api/v1/internal/shelters/"+id, "wrong")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}
