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
	"fitcheckedapi/services"
	"fitcheckedapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTripWithWeatherSnapshot(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	weather := test.WeatherServiceMock{Forecast: &services.WeatherForecast{TempC: 8.5, Precipitation: 2.1, Summary: "light rain"}}
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, &test.URLCacheMock{}, weather)
	user := test.FakeUser(db)

	reqBody := CreateTripIn{
		Name:        "Paris getaway",
		Destination: "Paris",
		StartsAt:    time.Now().Add(7 * 24 * time.Hour),
		EndsAt:      time.Now().Add(10 * 24 * time.Hour),
	}
	req := test.NewJSONAuthRequest("POST", "/trips/create", strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var response TripResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "Paris getaway", response.Name)
	require.NotNil(t, response.ExpectedTempC)
	assert.Equal(t, 8.5, *response.ExpectedTempC)
	require.NotNil(t, response.WeatherSummary)
	assert.Equal(t, "light rain", *response.WeatherSummary)
}

func TestCreateTripSurvivesWeatherFailure(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	weather := test.WeatherServiceMock{Err: fmt.Errorf("geocoding timed out")}
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, &test.URLCacheMock{}, weather)
	user := test.FakeUser(db)

	reqBody := CreateTripIn{
		Name:        "Mystery trip",
		Destination: "Nowhereville",
		StartsAt:    time.Now().Add(24 * time.Hour),
		EndsAt:      time.Now().Add(48 * time.Hour),
	}
	req := test.NewJSONAuthRequest("POST", "/trips/create", strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var response TripResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Nil(t, response.ExpectedTempC)
	assert.Nil(t, response.WeatherSummary)
}

func TestCreateTripRejectsBackwardsDates(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, &test.URLCacheMock{}, test.WeatherServiceMock{})
	user := test.FakeUser(db)

	reqBody := CreateTripIn{
		Name:        "Backwards",
		Destination: "Paris",
		StartsAt:    time.Now().Add(48 * time.Hour),
		EndsAt:      time.Now().Add(24 * time.Hour),
	}
	req := test.NewJSONAuthRequest("POST", "/trips/create", strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddAndRemoveTripItems(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, &test.URLCacheMock{}, test.WeatherServiceMock{})
	user := test.FakeUser(db)
	item := test.FakeClosetItem(db, user, "Yellow midi dress", "dress")

	trip := models.Trip{OwnerID: user.ID, Name: "Weekend", Destination: "Rome", StartsAt: time.Now(), EndsAt: time.Now().Add(48 * time.Hour)}
	require.NoError(t, db.Create(&trip).Error)

	userPk := strconv.FormatUint(uint64(user.ID), 10)
	req := test.NewJSONAuthRequest("POST", fmt.Sprintf("/trips/%v/items", trip.ID), userPk, AddTripItemIn{ClosetItemID: item.ID})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// same closet item cannot be added twice
	req = test.NewJSONAuthRequest("POST", fmt.Sprintf("/trips/%v/items", trip.ID), userPk, AddTripItemIn{ClosetItemID: item.ID})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var tripItem models.TripItem
	require.NoError(t, db.Where("trip_id = ?", trip.ID).Take(&tripItem).Error)

	req = test.NewJSONAuthRequest("DELETE", fmt.Sprintf("/trips/%v/items/%v", trip.ID, tripItem.ID), userPk, "")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	db.Model(&models.TripItem{}).Where("trip_id = ?", trip.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestAddTripItemOfAnotherUser(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, &test.URLCacheMock{}, test.WeatherServiceMock{})
	user := test.FakeUser(db)
	otherUser := test.FakeUserV2(db, "Other", "other@example.com")
	foreignItem := test.FakeClosetItem(db, otherUser, "Not yours", "top")

	trip := models.Trip{OwnerID: user.ID, Name: "Weekend", Destination: "Rome", StartsAt: time.Now(), EndsAt: time.Now().Add(48 * time.Hour)}
	require.NoError(t, db.Create(&trip).Error)

	req := test.NewJSONAuthRequest("POST", fmt.Sprintf("/trips/%v/items", trip.ID), strconv.FormatUint(uint64(user.ID), 10), AddTripItemIn{ClosetItemID: foreignItem.ID})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleTripItemPacked(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, &test.URLCacheMock{}, test.WeatherServiceMock{})
	user := test.FakeUser(db)
	item := test.FakeClosetItem(db, user, "Yellow midi dress", "dress")

	trip := models.Trip{OwnerID: user.ID, Name: "Weekend", Destination: "Rome", StartsAt: time.Now(), EndsAt: time.Now().Add(48 * time.Hour)}
	require.NoError(t, db.Create(&trip).Error)
	tripItem := models.TripItem{TripID: trip.ID, ClosetItemID: item.ID}
	require.NoError(t, db.Create(&tripItem).Error)

	req := test.NewJSONAuthRequest("PATCH", fmt.Sprintf("/trips/%v/items/%v", trip.ID, tripItem.ID), strconv.FormatUint(uint64(user.ID), 10), UpdateTripItemIn{Packed: BoolPointer(true)})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var after models.TripItem
	require.NoError(t, db.First(&after, tripItem.ID).Error)
	assert.True(t, after.Packed)
}

func TestTripInsights(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, &test.URLCacheMock{}, test.WeatherServiceMock{})
	user := test.FakeUser(db)
	dress := test.FakeClosetItem(db, user, "Yellow midi dress", "dress")
	shoes := test.FakeClosetItem(db, user, "Heeled sandals", "shoes")

	rain := 3.2
	cold := 6.0
	trip := models.Trip{
		OwnerID:               user.ID,
		Name:                  "Rainy week",
		Destination:           "London",
		StartsAt:              time.Now(),
		EndsAt:                time.Now().Add(5 * 24 * time.Hour),
		ExpectedTempC:         &cold,
		ExpectedPrecipitation: &rain,
	}
	require.NoError(t, db.Create(&trip).Error)
	require.NoError(t, db.Create(&models.TripItem{TripID: trip.ID, ClosetItemID: dress.ID, Packed: true}).Error)
	require.NoError(t, db.Create(&models.TripItem{TripID: trip.ID, ClosetItemID: shoes.ID}).Error)

	req := test.NewJSONAuthRequest("GET", fmt.Sprintf("/trips/%v/insights", trip.ID), strconv.FormatUint(uint64(user.ID), 10), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var insights TripInsightsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &insights))
	assert.Equal(t, 2, insights.TotalItems)
	assert.Equal(t, 1, insights.PackedItems)
	assert.Equal(t, 1, insights.CategoryCounts["dress"])
	// the dress covers top and bottom, outerwear is still missing for the rain
	assert.NotContains(t, insights.MissingCategories, "top")
	assert.NotContains(t, insights.MissingCategories, "bottom")
	assert.Contains(t, insights.Suggestions, "Rain is expected at your destination, pack a jacket or coat")
	assert.Contains(t, insights.Suggestions, "It will be cold, do not forget warm outerwear")
}

func TestDeleteTripRemovesItems(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, &test.URLCacheMock{}, test.WeatherServiceMock{})
	user := test.FakeUser(db)
	item := test.FakeClosetItem(db, user, "Yellow midi dress", "dress")

	trip := models.Trip{OwnerID: user.ID, Name: "Weekend", Destination: "Rome", StartsAt: time.Now(), EndsAt: time.Now().Add(48 * time.Hour)}
	require.NoError(t, db.Create(&trip).Error)
	require.NoError(t, db.Create(&models.TripItem{TripID: trip.ID, ClosetItemID: item.ID}).Error)

	req := test.NewJSONAuthRequest("DELETE", fmt.Sprintf("/trips/%v", trip.ID), strconv.FormatUint(uint64(user.ID), 10), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var itemCount int64
	db.Model(&models.TripItem{}).Where("trip_id = ?", trip.ID).Count(&itemCount)
	assert.Equal(t, int64(0), itemCount)

	// the closet item itself survives
	var closetCount int64
	db.Model(&models.ClosetItem{}).Where("id = ?", item.ID).Count(&closetCount)
	assert.Equal(t, int64(1), closetCount)
}
