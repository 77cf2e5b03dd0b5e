package model

type EventKind string

const (
	EventText         EventKind = "text"
	EventButton       EventKind = "button"
	EventFile         EventKind = "file"
	EventSessionStart EventKind = "session_start"
)

type FileKind string

const (
	FilePhoto    FileKind = "photo"
	FileDocument FileKind = "document"
)

// FileRef points at a file already held by the messaging provider.
type FileRef struct {
	ID   string
	Kind FileKind
	Name string
}

// Event is an inbound chat event normalized by the messaging adapter.
type Event struct {
	Kind           EventKind
	ConversationID int64
	Text           string   // EventText
	Action         string   // EventButton
	File           *FileRef // EventFile
}

func TextEvent(id int64, text string) Event {
	return Event{Kind: EventText, ConversationID: id, Text: text}
}

func ButtonEvent(id int64, action string) Event {
	return Event{Kind: EventButton, ConversationID: id, Action: action}
}

func FileEvent(id int64, f FileRef) Event {
	return Event{Kind: EventFile, ConversationID: id, File: &f}
}

func SessionStartEvent(id int64) Event {
	return Event{Kind: EventSessionStart, ConversationID: id}
}
