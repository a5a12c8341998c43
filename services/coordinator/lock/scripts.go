// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lock

// The engine's whole mutation protocol lives in these scripts. Each one runs
// server-side with no interleaving, which is what makes multi-file acquisition
// atomic and owner checks race-free. Time never comes from the store: the
// caller passes now (ms since epoch) so that behavior is testable and
// unaffected by server clock skew.

// acquireScript installs locks for every requested path or none of them.
//
// KEYS[1]  lock hash for (repo, branch)
// ARGV[1]  now, ms since epoch
// ARGV[2]  requesting user id
// ARGV[3]  number of paths n
// ARGV[4 + 2i], ARGV[5 + 2i]  path i and its serialized entry, i in [0, n)
//
// Reply: {1} on success, or {0, path, holder_id, holder_name} on the first
// conflicting path. An existing entry conflicts when it is not expired and
// belongs to a different user. Undecodable entries are treated as absent and
// overwritten by the commit phase.
const acquireScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local user_id = ARGV[2]
local n = tonumber(ARGV[3])

for i = 0, n - 1 do
  local path = ARGV[4 + i * 2]
  local existing = redis.call('HGET', key, path)
  if existing then
    local ok, entry = pcall(cjson.decode, existing)
    if ok and type(entry) == 'table' and entry.expiry and tonumber(entry.expiry) > now and entry.user_id ~= user_id then
      return {0, path, entry.user_id, entry.user_name or ''}
    end
  end
end

for i = 0, n - 1 do
  redis.call('HSET', key, ARGV[4 + i * 2], ARGV[5 + i * 2])
end
return {1}
`

// releaseScript deletes each requested path iff the caller owns it.
//
// KEYS[1]  lock hash for (repo, branch)
// ARGV[1]  requesting user id
// ARGV[2..] paths to release
//
// Reply: array of the paths actually deleted. Entries held by another user
// are silently skipped.
const releaseScript = `
local key = KEYS[1]
local user_id = ARGV[1]
local released = {}

for i = 2, #ARGV do
  local path = ARGV[i]
  local existing = redis.call('HGET', key, path)
  if existing then
    local ok, entry = pcall(cjson.decode, existing)
    if ok and type(entry) == 'table' and entry.user_id == user_id then
      redis.call('HDEL', key, path)
      released[#released + 1] = path
    end
  end
end
return released
`

// sweepScript removes expired and undecodable entries from one lock hash.
//
// KEYS[1]  lock hash
// ARGV[1]  now, ms since epoch
//
// Reply: number of entries removed. Running the expiry check inside the
// script closes the race where an owner refreshes an entry between an outside
// read and the delete.
const sweepScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local removed = 0
local entries = redis.call('HGETALL', key)

for i = 1, #entries, 2 do
  local path = entries[i]
  local raw = entries[i + 1]
  local ok, entry = pcall(cjson.decode, raw)
  if not ok or type(entry) ~= 'table' or not entry.expiry or tonumber(entry.expiry) < now then
    redis.call('HDEL', key, path)
    removed = removed + 1
  end
end
return removed
`

// releaseAllScript wipes one lock hash and reports how many entries it held.
//
// KEYS[1]  lock hash
const releaseAllScript = `
local n = redis.call('HLEN', KEYS[1])
redis.call('DEL', KEYS[1])
return n
`
