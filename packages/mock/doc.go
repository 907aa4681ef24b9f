// Package mock serves a local copy of the reqres.in users and login API.
//
// The fixture has twelve users, six per page, and answers login, register
// and user CRUD requests the way the public service does, so suites can run
// without network access:
//
//	srv := httptest.NewServer(mock.NewServer().Handler())
//	// base URL: srv.URL + "/api"
package mock
