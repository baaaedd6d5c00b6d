package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"fitcheckedapi/dbhelper"
	"fitcheckedapi/models"
	"fitcheckedapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEvent(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, &test.URLCacheMock{}, test.WeatherServiceMock{})
	user := test.FakeUser(db)

	reqBody := CreateEventIn{
		Title:        "College reunion",
		FormalityTag: stringPtr("semi-formal"),
		StartsAt:     time.Now().Add(5 * 24 * time.Hour),
		RemindMe:     true,
	}
	req := test.NewJSONAuthRequest("POST", "/events/create", strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var event models.CalendarEvent
	require.NoError(t, db.Where("owner_id = ?", user.ID).Take(&event).Error)
	assert.Equal(t, "College reunion", event.Title)
	assert.True(t, event.RemindMe)
	require.NotNil(t, event.FormalityTag)
	assert.Equal(t, "semi-formal", *event.FormalityTag)
}

func TestCreateEventWithForeignOutfitRequest(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, &test.URLCacheMock{}, test.WeatherServiceMock{})
	user := test.FakeUser(db)
	otherUser := test.FakeUserV2(db, "Other", "other@example.com")
	foreignRequest := fakeOutfitRequest(db, otherUser, "not yours", "completed")

	reqBody := CreateEventIn{
		Title:           "Sneaky link",
		StartsAt:        time.Now().Add(24 * time.Hour),
		OutfitRequestID: &foreignRequest.ID,
	}
	req := test.NewJSONAuthRequest("POST", "/events/create", strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEventsOrderedByStart(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, &test.URLCacheMock{}, test.WeatherServiceMock{})
	user := test.FakeUser(db)

	later := models.CalendarEvent{OwnerID: user.ID, Title: "Later", StartsAt: time.Now().Add(72 * time.Hour)}
	sooner := models.CalendarEvent{OwnerID: user.ID, Title: "Sooner", StartsAt: time.Now().Add(24 * time.Hour)}
	require.NoError(t, db.Create(&later).Error)
	require.NoError(t, db.Create(&sooner).Error)

	req := test.NewJSONAuthRequest("GET", "/events/list", strconv.FormatUint(uint64(user.ID), 10), "")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response struct {
		Events []models.CalendarEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Events, 2)
	assert.Equal(t, "Sooner", response.Events[0].Title)
	assert.Equal(t, "Later", response.Events[1].Title)
}

func TestUpdateEventLinksOwnOutfitRequest(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, &test.URLCacheMock{}, test.WeatherServiceMock{})
	user := test.FakeUser(db)
	request := fakeOutfitRequest(db, user, "yellow midi dress for a wedding", "completed")

	event := models.CalendarEvent{OwnerID: user.ID, Title: "Wedding", StartsAt: time.Now().Add(24 * time.Hour)}
	require.NoError(t, db.Create(&event).Error)

	reqBody := UpdateEventIn{OutfitRequestID: &request.ID}
	req := test.NewJSONAuthRequest("PATCH", fmt.Sprintf("/events/%v", event.ID), strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var after models.CalendarEvent
	require.NoError(t, db.First(&after, event.ID).Error)
	require.NotNil(t, after.OutfitRequestID)
	assert.Equal(t, request.ID, *after.OutfitRequestID)
}

func TestUpdateEventMoveResetsReminder(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, &test.URLCacheMock{}, test.WeatherServiceMock{})
	user := test.FakeUser(db)

	event := models.CalendarEvent{OwnerID: user.ID, Title: "Wedding", StartsAt: time.Now().Add(24 * time.Hour), RemindMe: true, Reminded: true}
	require.NoError(t, db.Create(&event).Error)

	newStart := time.Now().Add(96 * time.Hour)
	reqBody := UpdateEventIn{StartsAt: &newStart}
	req := test.NewJSONAuthRequest("PATCH", fmt.Sprintf("/events/%v", event.ID), strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var after models.CalendarEvent
	require.NoError(t, db.First(&after, event.ID).Error)
	assert.False(t, after.Reminded)
}

func TestDeleteEventOfAnotherUser(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, &test.URLCacheMock{}, test.WeatherServiceMock{})
	user := test.FakeUser(db)
	otherUser := test.FakeUserV2(db, "Other", "other@example.com")

	event := models.CalendarEvent{OwnerID: otherUser.ID, Title: "Not yours", StartsAt: time.Now().Add(24 * time.Hour)}
	require.NoError(t, db.Create(&event).Error)

	req := test.NewJSONAuthRequest("DELETE", fmt.Sprintf("/events/%v", event.ID), strconv.FormatUint(uint64(user.ID), 10), "")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var count int64
	db.Model(&models.CalendarEvent{}).Where("id = ?", event.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}
