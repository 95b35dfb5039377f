package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"meetsync/backend/internal/models"
)

const onlineKeyPrefix = "presence:meeting:"

func onlineKey(meetingID string) string {
	return onlineKeyPrefix + meetingID
}

// MarkOnline додає користувача в Redis-множину тих, хто підключений до зустрічі.
func (s *Service) MarkOnline(ctx context.Context, meetingID, userID string) error {
	return s.Redis.SAdd(ctx, onlineKey(meetingID), userID).Err()
}

// MarkOffline прибирає користувача з online-множини зустрічі.
func (s *Service) MarkOffline(ctx context.Context, meetingID, userID string) error {
	return s.Redis.SRem(ctx, onlineKey(meetingID), userID).Err()
}

func (s *Service) GetOnlineUserIDs(ctx context.Context, meetingID string) ([]string, error) {
	return s.Redis.SMembers(ctx, onlineKey(meetingID)).Result()
}

// ClearOnline видаляє всі online-множини. Викликається на старті, коли зʼєднань ще немає.
func (s *Service) ClearOnline(ctx context.Context) (int64, error) {
	var removed int64
	iter := s.Redis.Scan(ctx, 0, onlineKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := s.Redis.Del(ctx, iter.Val()).Result()
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, iter.Err()
}

// EventChannelFor is the pub/sub channel carrying the events of one meeting.
func (s *Service) EventChannelFor(meetingID string) string {
	return fmt.Sprintf("%s:%s", s.EventChannel, meetingID)
}

// PublishEvent публікує подію присутності або чату для решти платформи.
func (s *Service) PublishEvent(ctx context.Context, evt models.StreamEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, s.EventChannelFor(evt.MeetingID), payload).Err()
}
