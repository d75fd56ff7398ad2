/*
Package config loads the daemon's YAML configuration file: data directory
layout, the custom-blocks plugin directory, the remanent checkpoint
interval, the scheduler's soft-execute-timeout override, and the KNX driver
connection string.

Field names and the yaml.v3 unmarshalling style follow the teacher's own
config handling; defaults are applied after unmarshalling so a mostly-empty
file is valid.
*/
package config
