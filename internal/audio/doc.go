// Package audio plays the notification sound. Sound files (WAV, OGG, MP3)
// are decoded once with beep and cached until the file changes on disk;
// without a configured file a short generated chime is played instead.
package audio
