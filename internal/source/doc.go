// Package source loads the list of artworks to download from a crawl export.
//
// The export is JSON, either a bare array or wrapped in a "result" object:
//
//	{"result": [
//	  {"id": "81234567_p0", "work_id": "81234567", "page": 0,
//	   "title": "Sunset", "user": "alice", "user_id": "1001",
//	   "url": "https://i.example.net/img/81234567_p0.png",
//	   "date": "2024-05-01T10:00:00Z"}
//	]}
//
// Numeric ids are accepted, "idNum" is an alias for "work_id" and
// "original" for "url". The list is fixed once loaded; the scheduler never
// sees new items during a run.
package source
