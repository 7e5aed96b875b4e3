package main

// General API documentation for swaggo. Run `swag init -g cmd/sightspeak/docs.go -o docs` to regenerate.
//
// @title           SightSpeak API
// @version         1.0
// @description     HTTP API for the on-device assistant: streamed and blocking generation, cancel, reset and status.
//
// @contact.name   sightspeak maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
