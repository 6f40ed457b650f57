// Package tts voices the rewritten script through the Azure Speech REST
// API. Each line is rendered as SSML with an express-as style derived from
// its emotion; lines whose styled request fails are retried with a neutral
// delivery before giving up.
package tts
