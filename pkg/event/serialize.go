package event

import (
	"encoding/json"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Event はCloudEventsのイベント。
type Event = cloudevents.Event

// New は新しいCloudEventsイベントを生成する。
// sourceには発行元サービス（例: "/findtail/messaging"）、subjectには宛先ユーザーIDを指定する。
// dataはJSON形式にシリアライズされる。
func New(source string, eventType Type, subject string, data any) (Event, error) {
	e := cloudevents.NewEvent()
	e.SetID(newEventID())
	e.SetSource(source)
	e.SetType(string(eventType))
	e.SetSubject(subject)
	e.SetTime(time.Now().UTC())

	if err := e.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return Event{}, fmt.Errorf("イベントデータのシリアライズに失敗: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, fmt.Errorf("イベントの検証に失敗: %w", err)
	}
	return e, nil
}

// Encode はイベントをCloudEvents JSON形式にエンコードする。
func Encode(e Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("イベントのエンコードに失敗: %w", err)
	}
	return b, nil
}

// Decode はCloudEvents JSON形式のバイト列をイベントにデコードする。
func Decode(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("イベントのデコードに失敗: %w", err)
	}
	return e, nil
}

// DecodeData はイベントのデータを指定された型にデシリアライズする。
func DecodeData[T any](e Event) (*T, error) {
	var data T
	if err := e.DataAs(&data); err != nil {
		return nil, fmt.Errorf("イベントデータのデシリアライズに失敗: %w", err)
	}
	return &data, nil
}

// newEventID は時刻順に並ぶUUIDv7をイベントIDとして生成する。
func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
