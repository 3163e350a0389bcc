// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-perf.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package report

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"strconv"
	"strings"
)

// FormatFilename expands %-placeholders in template against the running
// process's identity, grounded on cc-backend's checkpoint/archive directory
// conventions (pkg/metricstore/config.go's Checkpoints/Cleanup structs,
// which likewise build output paths from a small set of known fields
// instead of a general template engine):
//
//	%p  process id (os.Getpid)
//	%r  threadID (the "rank" a report entry belongs to)
//	%j  job id: $SLURM_JOB_ID, else $PBS_JOBID, else "0"
//	%m  md5 digest of argv, for distinguishing concurrent instances sharing
//	     a job id and pid namespace (e.g. across containers on one node)
func FormatFilename(template string, argv []string, threadID string) string {
	r := strings.NewReplacer(
		"%p", strconv.Itoa(os.Getpid()),
		"%r", threadID,
		"%j", jobID(),
		"%m", argvDigest(argv),
	)
	return r.Replace(template)
}

func jobID() string {
	for _, env := range []string{"SLURM_JOB_ID", "PBS_JOBID"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return "0"
}

func argvDigest(argv []string) string {
	sum := md5.Sum([]byte(strings.Join(argv, "\x00")))
	return hex.EncodeToString(sum[:])
}
