package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// NotifyWebhook : POST-уведомление о попытке обновления токенов с нового IP
func NotifyWebhook(webhookURL string, userUUID string, newIP string, knownIP string) error {
	if webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"user_uuid": userUUID,
		"new_ip":    newIP,
		"known_ip":  knownIP,
		"event":     "refresh_from_new_ip",
	})
	if err != nil {
		return fmt.Errorf("ошибка сериализации webhook: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("ошибка отправки webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook вернул статус %d", resp.StatusCode)
	}

	return nil
}
