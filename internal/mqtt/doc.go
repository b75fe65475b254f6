// Package mqtt publishes Home Assistant MQTT discovery messages and
// periodic per-region airspace sensor states. The copilot appears as a
// native HA device with availability tracking; each watched region
// contributes aircraft, anomaly, average altitude, average velocity,
// and last-updated sensors.
//
// The publisher uses Eclipse Paho v2's [autopaho] package for
// connection management with automatic reconnection. On every
// (re-)connect it publishes retained discovery config payloads for
// each sensor entity and a birth message ("online") to the
// availability topic. A will message ensures the availability topic
// transitions to "offline" on unexpected disconnects.
package mqtt
