package config

// DefaultConfigYAML contains the default configuration YAML content written by
// `reelsight init`. Values left out fall back to the loader defaults.
const DefaultConfigYAML = `# reelsight configuration
#
# Secrets are best supplied through the environment (or a .env file):
#   REELSIGHT_PROVIDERS_NARRATIVE_API_KEY, REELSIGHT_PROVIDERS_VISION_API_KEY

log:
  level: info
  format: auto

server:
  host: localhost
  port: 8080
  # Finished jobs are dropped from memory on this schedule; results stay in the store.
  evict_schedule: "@every 10m"
  evict_after: 1h

providers:
  narrative:
    # Any OpenAI-compatible chat completions endpoint.
    base_url: https://generativelanguage.googleapis.com/v1beta/openai/
    model: gemini-1.5-pro
    temperature: 0.4
  vision:
    base_url: https://api.clarifai.com
    user_id: clarifai
    app_id: main
    sample_interval_ms: 1000
    thresholds:
      concept: 0.7
      face_sentiment: 0.3
      face_age: 0.3
      face_gender: 0.3
      face_multiculturality: 0.3
      object: 0.7
      celebrity: 0.8

retry:
  max_attempts: 3
  initial_delay: 2s
  max_delay: 30s

reconcile:
  # Share given to the narrative source when blending estimates.
  weight: 0.7
  max_perturbation: 1.5
  contradiction_threshold: 15

synthesis:
  model: gemini-1.5-pro
  temperature: 0.2
  validator_temperature: 0.1
  validation_enabled: true

pipeline:
  # best_effort completes jobs with neutral defaults when a provider fails;
  # strict fails the job instead.
  failure_policy: best_effort
  max_concurrent: 4

store:
  # sqlite | json | mongo | postgres
  backend: sqlite
  path: .reelsight/results.db

cache:
  enabled: false
  addr: localhost:6379
  ttl: 24h

staging:
  # none | s3
  backend: none

events:
  kafka:
    enabled: false
    brokers: [localhost:9092]
    topic: reelsight.jobs

metrics:
  enabled: true
`
