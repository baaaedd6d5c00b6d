package controllers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fitcheckedapi/dbhelper"
	"fitcheckedapi/models"
	"fitcheckedapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rcEvent(appUserId string, eventType string) map[string]interface{} {
	return map[string]interface{}{
		"event": map[string]interface{}{
			"app_id":                      "app70fd013e95",
			"app_user_id":                 appUserId,
			"commission_percentage":       nil,
			"country_code":                "US",
			"currency":                    nil,
			"entitlement_id":              nil,
			"entitlement_ids":             nil,
			"environment":                 "SANDBOX",
			"event_timestamp_ms":          1715405366686,
			"expiration_at_ms":            1715412566686,
			"id":                          "791C890E-B8AD-46C9-8290-13EAF5F14C9F",
			"is_family_share":             nil,
			"offer_code":                  nil,
			"original_app_user_id":        "7f680253-003b-4073-b4f3-5d1df7cd9a67",
			"original_transaction_id":     nil,
			"period_type":                 "NORMAL",
			"presented_offering_id":       nil,
			"price":                       nil,
			"price_in_purchased_currency": nil,
			"product_id":                  "test_product",
			"purchased_at_ms":             1715405366686,
			"store":                       "PLAY_STORE",
			"takehome_percentage":         nil,
			"tax_percentage":              nil,
			"transaction_id":              nil,
			"type":                        eventType,
		},
	}
}

func TestWebhookInitialPurchase(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, &test.URLCacheMock{}, test.WeatherServiceMock{})
	user := test.FakeUser(db)

	data := rcEvent(fmt.Sprint(user.ID), "INITIAL_PURCHASE")
	req := test.NewJSONAuthRequestCustomAuth("POST", "/webhooks/rc-subscription-webhooks", fmt.Sprintf("Bearer %s", "fake"), data)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated models.UserAccount
	db.First(&updated, user.ID)
	require.NotNil(t, updated.Subscription)
	assert.Equal(t, string(models.Pro), *updated.Subscription)
	require.NotNil(t, updated.ExpirationDate)
	assert.Equal(t, 2029, updated.ExpirationDate.Year())
}

func TestWebhookExpirationDowngradesToFree(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, &test.URLCacheMock{}, test.WeatherServiceMock{})
	user := test.FakeUser(db)
	proPlan := string(models.Pro)
	user.Subscription = &proPlan
	require.NoError(t, db.Save(user).Error)

	data := rcEvent(fmt.Sprint(user.ID), "EXPIRATION")
	req := test.NewJSONAuthRequestCustomAuth("POST", "/webhooks/rc-subscription-webhooks", fmt.Sprintf("Bearer %s", "fake"), data)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated models.UserAccount
	db.First(&updated, user.ID)
	require.NotNil(t, updated.Subscription)
	assert.Equal(t, string(models.Free), *updated.Subscription)
}

func TestWebhookRejectsBadToken(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil, nil, &test.URLCacheMock{}, test.WeatherServiceMock{})
	user := test.FakeUser(db)

	data := rcEvent(fmt.Sprint(user.ID), "INITIAL_PURCHASE")
	req := test.NewJSONAuthRequestCustomAuth("POST", "/webhooks/rc-subscription-webhooks", "Bearer wrong-token", data)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
