package outbox

const activityIngestedSchema = `{
  "type": "object",
  "title": "ActivityIngested",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "source": {"type": "string"},
    "activity_type": {"type": "string"},
    "started_at": {"type": "string", "format": "date-time"},
    "duration_min": {"type": "number"},
    "ingested_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "source", "activity_type", "started_at", "duration_min", "ingested_at"],
  "additionalProperties": false
}`

const duplicateFlaggedSchema = `{
  "type": "object",
  "title": "DuplicateFlagged",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "duplicate_of": {"type": "string"},
    "confidence": {"type": "integer", "minimum": 0, "maximum": 100},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "duplicate_of", "confidence", "occurred_at"],
  "additionalProperties": false
}`

const mergeRequestCreatedSchema = `{
  "type": "object",
  "title": "MergeRequestCreated",
  "properties": {
    "merge_request_id": {"type": "string"},
    "user_id": {"type": "string"},
    "primary_id": {"type": "string"},
    "duplicate_id": {"type": "string"},
    "confidence": {"type": "integer", "minimum": 0, "maximum": 100},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["merge_request_id", "user_id", "primary_id", "duplicate_id", "confidence", "created_at"],
  "additionalProperties": false
}`

const readinessUpdatedSchema = `{
  "type": "object",
  "title": "ReadinessUpdated",
  "properties": {
    "user_id": {"type": "string"},
    "date": {"type": "string", "format": "date"},
    "score": {"type": "integer", "minimum": 0, "maximum": 100},
    "status": {"type": "string", "enum": ["poor", "low", "balanced", "high", "optimal"]},
    "method": {"type": "string"},
    "updated_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "date", "score", "status", "method", "updated_at"],
  "additionalProperties": false
}`
