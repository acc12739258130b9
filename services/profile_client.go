// services/profile_client.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Friend is the projection of a profile-service user the registry needs for
// notification fan-out.
type Friend struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// ProfileDirectory is the narrow view of the profile service the presence
// registry depends on, so registry logic stays testable without a live
// network dependency.
type ProfileDirectory interface {
	FriendsOf(userID uint) ([]Friend, error)
	PushStatus(userID uint, online bool) error
}

// ProfileServiceClient talks to the user-profile/friends microservice using
// the shared static service token.
type ProfileServiceClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewProfileServiceClient(baseURL, token string) *ProfileServiceClient {
	return &ProfileServiceClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FriendsOf calls GET /friends/{id}/ and returns the user's friends list.
func (c *ProfileServiceClient) FriendsOf(userID uint) ([]Friend, error) {
	url := fmt.Sprintf("%s/friends/%d/", c.BaseURL, userID)

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Printf("ProfileService /friends/%d/ returned %d: %s", userID, resp.StatusCode, string(body))
		return nil, fmt.Errorf("friends fetch failed: %d", resp.StatusCode)
	}

	var out struct {
		Users []Friend `json:"users"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}

	return out.Users, nil
}

// PushStatus calls PUT /users/status/ to mirror the user's online flag on
// the profile service.
func (c *ProfileServiceClient) PushStatus(userID uint, online bool) error {
	url := fmt.Sprintf("%s/users/status/", c.BaseURL)

	reqBody := map[string]interface{}{
		"is_online": online,
		"user_id":   userID,
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequest("PUT", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status push failed: %d", resp.StatusCode)
	}
	return nil
}
