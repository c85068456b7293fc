// Package config provides configuration parsing for memoview.
//
// The configuration is stored in memoview.json. Every field is optional;
// absent fields keep their defaults.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "host": "localhost",
//	    "port": 3000
//	  },
//	  "timer": {
//	    "interval": "1s"
//	  },
//	  "loop": {
//	    "queue_size": 256
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "path": "/metrics"
//	  },
//	  "tracing": {
//	    "enabled": false
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.LoadOptional(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
