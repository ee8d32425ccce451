// Package storage はアップロードされた画像ファイルをローカルディスクに保存する。
//
// ファイルはルートディレクトリからの相対キー（例: animals/<uuid>.png）で識別する。
// キーがルートディレクトリの外を指すことはない。
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	// image/png と image/gif はデコード用に副作用インポートする。
	_ "image/gif"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	// WebPはスマートフォンからのアップロードで多いためデコードに対応する。
	_ "golang.org/x/image/webp"
)

// sniffLen はContent-Type判定に使用する先頭バイト数。
const sniffLen = 512

// MaxPixels はデコードを許可する画像の最大画素数。
// 圧縮率の高い画像はファイルサイズが小さくても展開後のメモリが巨大になるため、
// デコード前にヘッダーの幅と高さで判定する。
const MaxPixels = 40_000_000

var (
	// ErrNotImage は画像以外のファイルが渡された場合のエラー。
	ErrNotImage = errors.New("画像ファイルではありません")
	// ErrTooLarge はファイルサイズが上限を超えた場合のエラー。
	ErrTooLarge = errors.New("ファイルサイズが上限を超えています")
	// ErrTooManyPixels は画像の画素数がMaxPixelsを超えた場合のエラー。
	ErrTooManyPixels = errors.New("画像の解像度が上限を超えています")
	// ErrInvalidKey はキーがルートディレクトリの外を指す場合のエラー。
	ErrInvalidKey = errors.New("不正なファイルキーです")
)

// extensions は許可するContent-Typeと保存時の拡張子の対応。
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Object は保存されたファイルの情報。
type Object struct {
	// Key はルートディレクトリからの相対パス。
	Key string `json:"key"`
	// ContentType はファイル内容から判定したMIMEタイプ。
	ContentType string `json:"content_type"`
	// Size はファイルサイズ（バイト）。
	Size int64 `json:"size"`
}

// Store はローカルディスク上のファイルストア。
type Store struct {
	root string
}

// New はルートディレクトリを作成してストアを返す。
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("ストレージディレクトリの作成に失敗: %w", err)
	}
	return &Store{root: root}, nil
}

// Save はrの内容を dir 配下に新しいファイル名で保存し、オブジェクト情報を返す。
// Content-Typeはクライアントの申告ではなくファイル内容から判定し、image/* 以外は拒否する。
// maxSizeを超える場合はファイルを残さずErrTooLargeを返す。
func (s *Store) Save(dir, filename string, r io.Reader, maxSize int64) (Object, error) {
	if !filepath.IsLocal(filepath.FromSlash(dir)) {
		return Object{}, ErrInvalidKey
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Object{}, fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return Object{}, ErrNotImage
	}

	key := path.Join(dir, uuid.New().String()+extensionFor(filename, contentType))
	full := s.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Object{}, fmt.Errorf("保存先ディレクトリの作成に失敗: %w", err)
	}

	dst, err := os.Create(full)
	if err != nil {
		return Object{}, fmt.Errorf("ファイルの作成に失敗: %w", err)
	}

	src := io.LimitReader(io.MultiReader(bytes.NewReader(head), r), maxSize+1)
	written, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if copyErr == nil && written > maxSize {
		copyErr = ErrTooLarge
	}
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(full)
		if errors.Is(err, ErrTooLarge) {
			return Object{}, ErrTooLarge
		}
		return Object{}, fmt.Errorf("ファイルの書き込みに失敗: %w", err)
	}

	return Object{Key: key, ContentType: contentType, Size: written}, nil
}

// extensionFor は保存時の拡張子を決める。
// 判定したContent-Typeに対応する拡張子を優先し、未知の画像形式は元のファイル名の拡張子を使う。
func extensionFor(filename, contentType string) string {
	if ext, ok := extensions[contentType]; ok {
		return ext
	}
	return strings.ToLower(filepath.Ext(filepath.Base(filename)))
}

// Thumbnail はkeyの画像を size x size の正方形に収まるよう縮小したJPEGを保存し、そのキーを返す。
// 余白は白で塗りつぶす。サムネイルは元画像と同じディレクトリに thumb_<名前>.jpg として保存する。
func (s *Store) Thumbnail(key string, size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("サムネイルサイズが不正です: %d", size)
	}

	if _, err := s.ImageConfig(key); err != nil {
		return "", err
	}

	src, err := s.Open(key)
	if err != nil {
		return "", err
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return "", fmt.Errorf("画像のデコードに失敗: %w", err)
	}

	thumb := fitSquare(img, size)

	base := path.Base(key)
	thumbKey := path.Join(path.Dir(key), "thumb_"+strings.TrimSuffix(base, path.Ext(base))+".jpg")
	dst, err := os.Create(s.fullPath(thumbKey))
	if err != nil {
		return "", fmt.Errorf("サムネイルファイルの作成に失敗: %w", err)
	}
	if err := jpeg.Encode(dst, thumb, &jpeg.Options{Quality: 85}); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("サムネイルのエンコードに失敗: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("サムネイルの書き込みに失敗: %w", err)
	}
	return thumbKey, nil
}

// ImageConfig はkeyの画像のヘッダーだけを読み、幅・高さと色モデルを返す。
// 画素数がMaxPixelsを超える場合はErrTooManyPixelsを返す。
func (s *Store) ImageConfig(key string) (image.Config, error) {
	f, err := s.Open(key)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Config{}, fmt.Errorf("画像ヘッダーの読み込みに失敗: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return cfg, ErrTooManyPixels
	}
	return cfg, nil
}

// fitSquare はアスペクト比を保ったまま画像を size x size の白いキャンバスの中央に描画する。
func fitSquare(src image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return dst
	}

	tw, th := size, size
	if w > h {
		th = max(1, h*size/w)
	} else {
		tw = max(1, w*size/h)
	}
	x0 := (size - tw) / 2
	y0 := (size - th) / 2

	draw.CatmullRom.Scale(dst, image.Rect(x0, y0, x0+tw, y0+th), src, b, draw.Over, nil)
	return dst
}

// Open はkeyのファイルを開く。
func (s *Store) Open(key string) (*os.File, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}
	f, err := os.Open(s.fullPath(key))
	if err != nil {
		return nil, fmt.Errorf("ファイルのオープンに失敗: %w", err)
	}
	return f, nil
}

// Path はkeyに対応するディスク上のパスを返す。
// gin.Context.File でファイルを返す際に使用する。
func (s *Store) Path(key string) (string, error) {
	if !validKey(key) {
		return "", ErrInvalidKey
	}
	return s.fullPath(key), nil
}

// Remove はkeyのファイルを削除する。存在しないファイルはエラーにしない。
func (s *Store) Remove(key string) error {
	if key == "" {
		return nil
	}
	if !validKey(key) {
		return ErrInvalidKey
	}
	if err := os.Remove(s.fullPath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ファイルの削除に失敗: %w", err)
	}
	return nil
}

func validKey(key string) bool {
	return key != "" && filepath.IsLocal(filepath.FromSlash(key))
}

func (s *Store) fullPath(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}
