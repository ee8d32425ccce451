package animal

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
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
	anonymous     = testUser{}
	shelterOwner  = testUser{ID: "shelter-owner-1", Role: middleware.RoleShelter}
	otherOwner    = testUser{ID: "shelter-owner-2", Role: middleware.RoleShelter}
	noShelterUser = testUser{ID: "shelter-owner-3", Role: middleware.RoleShelter}
	volunteer     = testUser{ID: "volunteer-1", Role: middleware.RoleVolunteer}
)

// newMockShelterService はシェルターサービスの内部APIを模したテストサーバーを生成する。
// shelter-owner-1 と shelter-owner-2 だけがシェルターを持つ。
func newMockShelterService(t *testing.T) *httptest.Server {
	t.Helper()

	shelters := map[string]string{
		"shelter-owner-1": `{"id":"shelter-1","owner_id":"shelter-owner-1","name":"Сірко","city":"Київ"}`,
		"shelter-owner-2": `{"id":"shelter-2","owner_id":"shelter-owner-2","name":"Лапа","city":"Львів"}`,
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get(middleware.HeaderInternalToken) != testInternalToken {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"unauthorized"}`)
			return
		}
		ownerID := strings.TrimPrefix(r.URL.Path, "/api/v1/internal/shelters/by-owner/")
		body, ok := shelters[ownerID]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"not found"}`)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

// setupTestServer はテスト用の動物サーバーをインメモリSQLiteと一時ディレクトリで構築する。
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

	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("ストレージの作成に失敗: %v", err)
	}

	cfg := config.Default(config.ServiceAnimal)
	cfg.JWTSecret = testJWTSecret
	cfg.InternalToken = testInternalToken
	cfg.Services.Shelter = newMockShelterService(t).URL

	s := newServer(cfg, db, store, zap.NewNop())
	return s, s.router
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

// doUpload はマルチパートフォームでファイルをアップロードするヘルパー関数。
func doUpload(t *testing.T, router *gin.Engine, path string, user testUser, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("フォームの作成に失敗: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("フォームの書き込みに失敗: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("フォームのクローズに失敗: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	authorize(t, req, user)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// pngBytes はテスト用のPNG画像を生成する。
func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 80, 60))
	for y := range 60 {
		for x := range 80 {
			img.Set(x, y, color.RGBA{R: 90, G: 60, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("PNGのエンコードに失敗: %v", err)
	}
	return buf.Bytes()
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

// createTestAnimal はAPI経由で動物を登録し、IDを返すヘルパー関数。
func createTestAnimal(t *testing.T, router *gin.Engine, user testUser, name, species, status string) string {
	t.Helper()
	w := doRequest(t, router, http.MethodPost, "/api/v1/animals", user, map[string]any{
		"name":       name,
		"species":    species,
		"status":     status,
		"age_months": 14,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("動物の登録に失敗: status=%d, body=%s", w.Code, w.Body.String())
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
}

// TestHandleCreate は動物の登録を検証する。
func TestHandleCreate(t *testing.T) {
	t.Parallel()

	t.Run("所属シェルターが解決されて登録されること", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)

		w := doRequest(t, router, http.MethodPost, "/api/v1/animals", shelterOwner, map[string]any{
			"name":    "Бровко",
			"species": "dog",
			"status":  "adoptable",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}
		body := parseJSON(t, w)
		if body["shelter_id"] != "shelter-1" {
			t.Errorf("shelter_id: got %v, want shelter-1", body["shelter_id"])
		}
		if body["city"] != "Київ" {
			t.Errorf("都市が省略された場合はシェルターの都市になるべき: got %v", body["city"])
		}
		if body["sex"] != "unknown" {
			t.Errorf("sex: got %v, want unknown", body["sex"])
		}
		if photos, ok := body["photos"].([]any); !ok || len(photos) != 0 {
			t.Errorf("photos: got %v, want empty array", body["photos"])
		}
	})

	t.Run("シェルター未登録の場合は409になること", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)

		w := doRequest(t, router, http.MethodPost, "/api/v1/animals", noShelterUser, map[string]any{
			"name":    "Мурка",
			"species": "cat",
			"status":  "adoptable",
		})
		if w.Code != http.StatusConflict {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusConflict)
		}
	})

	t.Run("ボランティアは登録できないこと", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)

		w := doRequest(t, router, http.MethodPost, "/api/v1/animals", volunteer, map[string]any{
			"name":    "Мурка",
			"species": "cat",
			"status":  "adoptable",
		})
		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("不正な種類は400になること", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)

		w := doRequest(t, router, http.MethodPost, "/api/v1/animals", shelterOwner, map[string]any{
			"name":    "Кеша",
			"species": "parrot",
			"status":  "adoptable",
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestHandleList は動物一覧の絞り込みを検証する。
func TestHandleList(t *testing.T) {
	t.Parallel()

	_, router := setupTestServer(t)
	first := createTestAnimal(t, router, shelterOwner, "Рекс", "dog", "adoptable")
	createTestAnimal(t, router, shelterOwner, "Мурка", "cat", "lost")
	last := createTestAnimal(t, router, otherOwner, "Барсик", "cat", "adoptable")

	t.Run("新しい順に返ること", func(t *testing.T) {
		t.Parallel()
		items := parseJSONArray(t, doRequest(t, router, http.MethodGet, "/api/v1/animals", anonymous, nil))
		if len(items) != 3 {
			t.Fatalf("件数: got %d, want 3", len(items))
		}
		if items[0]["id"] != last || items[2]["id"] != first {
			t.Errorf("並び順が新しい順ではない: %v, %v, %v", items[0]["id"], items[1]["id"], items[2]["id"])
		}
	})

	t.Run("種類と状態で絞り込めること", func(t *testing.T) {
		t.Parallel()
		items := parseJSONArray(t, doRequest(t, router, http.MethodGet, "/api/v1/animals?species=cat&status=adoptable", anonymous, nil))
		if len(items) != 1 || items[0]["id"] != last {
			t.Errorf("検索結果: got %v", items)
		}
	})

	t.Run("シェルターで絞り込めること", func(t *testing.T) {
		t.Parallel()
		items := parseJSONArray(t, doRequest(t, router, http.MethodGet, "/api/v1/animals?shelter_id=shelter-2", anonymous, nil))
		if len(items) != 1 || items[0]["id"] != last {
			t.Errorf("検索結果: got %v", items)
		}
	})

	t.Run("limitで件数を制限できること", func(t *testing.T) {
		t.Parallel()
		items := parseJSONArray(t, doRequest(t, router, http.MethodGet, "/api/v1/animals?limit=2&offset=1", anonymous, nil))
		if len(items) != 2 {
			t.Errorf("件数: got %d, want 2", len(items))
		}
	})

	t.Run("不正な種類は400になること", func(t *testing.T) {
		t.Parallel()
		w := doRequest(t, router, http.MethodGet, "/api/v1/animals?species=dragon", anonymous, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestHandleUpdateAndDelete は登録者チェック付きの更新・削除を検証する。
func TestHandleUpdateAndDelete(t *testing.T) {
	t.Parallel()

	t.Run("登録者は状態を更新できること", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)
		id := createTestAnimal(t, router, shelterOwner, "Рекс", "dog", "adoptable")

		w := doRequest(t, router, http.MethodPut, "/api/v1/animals/"+id, shelterOwner, map[string]any{
			"name":    "Рекс",
			"species": "dog",
			"status":  "adopted",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}
		body := parseJSON(t, w)
		if body["status"] != "adopted" {
			t.Errorf("status: got %v, want adopted", body["status"])
		}
		if body["city"] != "Київ" {
			t.Errorf("都市が省略された場合は既存の値を維持するべき: got %v", body["city"])
		}
	})

	t.Run("他のシェルターは更新できないこと", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)
		id := createTestAnimal(t, router, shelterOwner, "Рекс", "dog", "adoptable")

		w := doRequest(t, router, http.MethodPut, "/api/v1/animals/"+id, otherOwner, map[string]any{
			"name":    "Рекс",
			"species": "dog",
			"status":  "adopted",
		})
		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("削除すると写真ファイルも削除されること", func(t *testing.T) {
		t.Parallel()
		s, router := setupTestServer(t)
		id := createTestAnimal(t, router, shelterOwner, "Рекс", "dog", "adoptable")

		w := doUpload(t, router, "/api/v1/animals/"+id+"/photos", shelterOwner, "rex.png", pngBytes(t))
		if w.Code != http.StatusCreated {
			t.Fatalf("アップロードに失敗: status=%d, body=%s", w.Code, w.Body.String())
		}
		photo, err := s.queries.GetPhoto(t.Context(), id, parseJSON(t, w)["id"].(string))
		if err != nil {
			t.Fatalf("写真の取得に失敗: %v", err)
		}

		w = doRequest(t, router, http.MethodDelete, "/api/v1/animals/"+id, shelterOwner, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		for _, key := range []string{photo.Key, photo.ThumbnailKey} {
			path, err := s.store.Path(key)
			if err != nil {
				t.Fatalf("パス解決に失敗: %v", err)
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Errorf("ファイルが残っている: %s", key)
			}
		}

		w = doRequest(t, router, http.MethodGet, "/api/v1/animals/"+id, anonymous, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestPhotos は写真のアップロード・取得・削除を検証する。
func TestPhotos(t *testing.T) {
	t.Parallel()

	t.Run("アップロードした写真とサムネイルを取得できること", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)
		id := createTestAnimal(t, router, shelterOwner, "Рекс", "dog", "adoptable")

		w := doUpload(t, router, "/api/v1/animals/"+id+"/photos", shelterOwner, "rex.png", pngBytes(t))
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}
		photo := parseJSON(t, w)
		if photo["position"] != float64(0) {
			t.Errorf("position: got %v, want 0", photo["position"])
		}

		detail := parseJSON(t, doRequest(t, router, http.MethodGet, "/api/v1/animals/"+id, anonymous, nil))
		photos := detail["photos"].([]any)
		if len(photos) != 1 {
			t.Fatalf("写真の枚数: got %d, want 1", len(photos))
		}

		w = doRequest(t, router, http.MethodGet, photo["url"].(string), anonymous, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("写真取得のステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		if ct := w.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("Content-Type: got %q, want image/png", ct)
		}

		w = doRequest(t, router, http.MethodGet, photo["thumbnail_url"].(string), anonymous, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("サムネイル取得のステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("Content-Type: got %q, want image/jpeg", ct)
		}
	})

	t.Run("画像以外は400になること", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)
		id := createTestAnimal(t, router, shelterOwner, "Рекс", "dog", "adoptable")

		w := doUpload(t, router, "/api/v1/animals/"+id+"/photos", shelterOwner, "evil.png", []byte("#!/bin/sh\necho hi\n"))
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("解像度が上限を超える画像は400になり写真が登録されないこと", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)
		id := createTestAnimal(t, router, shelterOwner, "Рекс", "dog", "adoptable")

		w := doUpload(t, router, "/api/v1/animals/"+id+"/photos", shelterOwner, "huge.png", oversizedPNG(16000, 16000))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
		}

		detail := parseJSON(t, doRequest(t, router, http.MethodGet, "/api/v1/animals/"+id, anonymous, nil))
		if photos := detail["photos"].([]any); len(photos) != 0 {
			t.Errorf("写真の枚数: got %d, want 0", len(photos))
		}
	})

	t.Run("登録者以外はアップロードできないこと", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)
		id := createTestAnimal(t, router, shelterOwner, "Рекс", "dog", "adoptable")

		w := doUpload(t, router, "/api/v1/animals/"+id+"/photos", otherOwner, "rex.png", pngBytes(t))
		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("削除した写真は取得できないこと", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)
		id := createTestAnimal(t, router, shelterOwner, "Рекс", "dog", "adoptable")

		w := doUpload(t, router, "/api/v1/animals/"+id+"/photos", shelterOwner, "rex.png", pngBytes(t))
		photo := parseJSON(t, w)

		w = doRequest(t, router, http.MethodDelete, "/api/v1/animals/"+id+"/photos/"+photo["id"].(string), shelterOwner, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		w = doRequest(t, router, http.MethodGet, photo["url"].(string), anonymous, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestFavorites はお気に入りの追加・一覧・削除を検証する。
func TestFavorites(t *testing.T) {
	t.Parallel()

	t.Run("2回追加しても1件になること", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)
		id := createTestAnimal(t, router, shelterOwner, "Рекс", "dog", "adoptable")

		for range 2 {
			w := doRequest(t, router, http.MethodPost, "/api/v1/animals/"+id+"/favorite", volunteer, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
			}
		}

		items := parseJSONArray(t, doRequest(t, router, http.MethodGet, "/api/v1/favorites", volunteer, nil))
		if len(items) != 1 || items[0]["id"] != id {
			t.Errorf("お気に入り一覧: got %v", items)
		}

		// 他のユーザーの一覧には含まれない。
		items = parseJSONArray(t, doRequest(t, router, http.MethodGet, "/api/v1/favorites", otherOwner, nil))
		if len(items) != 0 {
			t.Errorf("他ユーザーのお気に入り一覧: got %v", items)
		}
	})

	t.Run("外したお気に入りは一覧から消えること", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)
		id := createTestAnimal(t, router, shelterOwner, "Рекс", "dog", "adoptable")

		doRequest(t, router, http.MethodPost, "/api/v1/animals/"+id+"/favorite", volunteer, nil)
		w := doRequest(t, router, http.MethodDelete, "/api/v1/animals/"+id+"/favorite", volunteer, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		items := parseJSONArray(t, doRequest(t, router, http.MethodGet, "/api/v1/favorites", volunteer, nil))
		if len(items) != 0 {
			t.Errorf("お気に入り一覧: got %v", items)
		}
	})

	t.Run("存在しない動物は404になること", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)

		w := doRequest(t, router, http.MethodPost, "/api/v1/animals/missing/favorite", volunteer, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("未認証の場合は401になること", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)

		w := doRequest(t, router, http.MethodGet, "/api/v1/favorites", anonymous, nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestInternalListByShelter はシェルター単位の内部APIを検証する。
func TestInternalListByShelter(t *testing.T) {
	t.Parallel()

	_, router := setupTestServer(t)
	createTestAnimal(t, router, shelterOwner, "Рекс", "dog", "adoptable")
	createTestAnimal(t, router, otherOwner, "Мурка", "cat", "lost")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/internal/animals/by-shelter/shelter-1", nil)
	req.Header.Set(middleware.HeaderInternalToken, testInternalToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}
	items := parseJSONArray(t, w)
	if len(items) != 1 || items[0]["name"] != "Рекс" {
		t.Errorf("動物一覧: got %v", items)
	}
}
